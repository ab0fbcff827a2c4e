package service

import (
	"context"
	"exposure/internal/model"
	"exposure/internal/utils"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

const whoisErrorPrefix = "Error retrieving WHOIS information: "

// WhoisClient is satisfied by *whois.Client.
type WhoisClient interface {
	Whois(domain string, servers ...string) (string, error)
}

type WhoisService struct {
	Client WhoisClient
}

// NewWhoisService disables the client's own referral handling; query
// follows the registrar referral itself.
func NewWhoisService(timeout time.Duration) *WhoisService {
	return &WhoisService{
		Client: whois.NewClient().
			SetTimeout(timeout).
			SetDisableReferral(true),
	}
}

// Manual fallbacks for common TLDs that might be missing in the library or IANA
var whoisFallbacks = map[string]string{
	"info": "whois.nic.info",
	"biz":  "whois.nic.biz",
	"mobi": "whois.dotmobi.net",
}

// Answers the registry gives instead of a registration record.
var whoisRefusals = []error{
	whoisparser.ErrNotFoundDomain,
	whoisparser.ErrReservedDomain,
	whoisparser.ErrPremiumDomain,
	whoisparser.ErrBlockedDomain,
	whoisparser.ErrDomainLimitExceed,
}

// Lookup returns the registration record of domain as text.
func (s *WhoisService) Lookup(ctx context.Context, domain string) model.LookupResult {
	if err := ctx.Err(); err != nil {
		return model.Failure(whoisErrorPrefix + err.Error())
	}

	raw, err := s.query(domain)
	if err != nil {
		utils.Log.Info("whois lookup failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return model.Failure(whoisErrorPrefix + err.Error())
	}
	return model.Success(raw)
}

func (s *WhoisService) query(target string) (string, error) {
	raw, err := s.Client.Whois(target)
	if err != nil && strings.Contains(err.Error(), "no whois server found") {
		tld := ""
		parts := strings.Split(target, ".")
		if len(parts) > 1 {
			tld = strings.ToLower(parts[len(parts)-1])
		}

		if server, ok := whoisFallbacks[tld]; ok {
			raw, err = s.Client.Whois(target, server)
		}

		if err != nil || raw == "" {
			if server := s.ianaReferral(target); server != "" {
				raw, err = s.Client.Whois(target, server)
			}
		}
	}
	if err != nil {
		return "", err
	}

	// Follow registrar referral if present in registry output
	if refServer := fieldValue(raw, "Registrar WHOIS Server:"); refServer != "" {
		refRaw, refErr := s.Client.Whois(target, refServer)
		if refErr == nil && len(refRaw) > len(raw)/2 {
			raw = refRaw
		}
	}

	raw = stripComments(raw)
	if strings.TrimSpace(raw) == "" {
		return "", errors.Errorf("empty answer for %s", target)
	}

	if _, perr := whoisparser.Parse(raw); perr != nil {
		for _, refusal := range whoisRefusals {
			if errors.Is(perr, refusal) {
				return "", errors.Wrap(perr, target)
			}
		}
	}
	return raw, nil
}

// ianaReferral asks IANA which server is authoritative for the TLD of target.
func (s *WhoisService) ianaReferral(target string) string {
	ianaRaw, err := s.Client.Whois(target, "whois.iana.org")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(ianaRaw, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(lower, "whois:") || strings.HasPrefix(lower, "refer:") {
			if _, v, ok := strings.Cut(line, ":"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func fieldValue(raw, key string) string {
	for _, line := range strings.Split(raw, "\n") {
		if _, v, ok := strings.Cut(line, key); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// stripComments drops lines starting with % or #, the per-query
// ">>> Last update of whois database: ... <<<" footer, and collapses blank
// runs. What remains only changes when the registration does.
func stripComments(raw string) string {
	var filtered []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ">>>") {
			continue
		}
		if trimmed == "" && (len(filtered) == 0 || filtered[len(filtered)-1] == "") {
			continue
		}
		filtered = append(filtered, strings.TrimRight(line, "\r"))
	}
	return strings.Join(filtered, "\n")
}
