package service

import (
	"context"
	"encoding/json"
	"exposure/internal/model"
	"exposure/internal/utils"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/openrdap/rdap"
	"github.com/openrdap/rdap/bootstrap"
)

const arinErrorPrefix = "Error retrieving ARIN information: "

// AddressResolver is the DNS side of the allocation lookup.
type AddressResolver interface {
	LookupIPv4(ctx context.Context, domain string) (net.IP, error)
	LookupOrigin(ctx context.Context, ip net.IP) (*OriginASN, error)
}

type ARINService struct {
	Resolver AddressResolver
	RDAP     *rdap.Client
	// Server, when set, replaces the IANA bootstrap.
	Server *url.URL
	// ASN enables the origin lookup that precedes the RDAP query.
	ASN bool
}

func NewARINService(resolver AddressResolver, client *http.Client, server string, asn bool) (*ARINService, error) {
	s := &ARINService{
		Resolver: resolver,
		RDAP: &rdap.Client{
			HTTP:      client,
			Bootstrap: &bootstrap.Client{HTTP: client},
		},
		ASN: asn,
	}
	if server != "" {
		u, err := url.Parse(strings.TrimSuffix(server, "/"))
		if err != nil {
			return nil, errors.Wrap(err, "parse rdap server")
		}
		s.Server = u
	}
	return s, nil
}

// Lookup resolves domain and returns the RDAP view of the network holding
// its address, with entity referrals followed one level deep.
func (s *ARINService) Lookup(ctx context.Context, domain string) model.LookupResult {
	result, err := s.lookup(ctx, domain)
	if err != nil {
		utils.Log.Info("allocation lookup failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return model.Failure(arinErrorPrefix + err.Error())
	}
	return model.Success(result)
}

func (s *ARINService) lookup(ctx context.Context, domain string) (map[string]interface{}, error) {
	ip, err := s.Resolver.LookupIPv4(ctx, domain)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"query": ip.String(),
	}

	if s.ASN {
		if origin, err := s.Resolver.LookupOrigin(ctx, ip); err == nil {
			result["asn"] = origin.ASN
			result["asn_cidr"] = origin.CIDR
			result["asn_country_code"] = origin.CountryCode
			result["asn_registry"] = origin.Registry
			result["asn_date"] = origin.Date
		} else {
			utils.Log.Debug("origin lookup failed", utils.Field("ip", ip.String()), utils.Field("error", err.Error()))
		}
	}

	req := rdap.NewIPRequest(ip).WithContext(ctx)
	if s.Server != nil {
		req = req.WithServer(s.Server)
	}
	resp, err := s.RDAP.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "rdap query for %s", ip)
	}
	if _, ok := resp.Object.(*rdap.IPNetwork); !ok {
		return nil, errors.Errorf("rdap returned %T, expected an IP network", resp.Object)
	}

	network, err := rawBody(resp)
	if err != nil {
		return nil, err
	}
	result["network"] = network

	handles, objects := s.entities(ctx, network, serverOf(resp, s.Server))
	result["entities"] = handles
	result["objects"] = objects

	return result, nil
}

// entities collects the entities attached to the network and the ones
// nested one level inside them, such as the contacts of an organization.
// Entities embedded without contact data are fetched once by handle.
func (s *ARINService) entities(ctx context.Context, network interface{}, server *url.URL) ([]string, map[string]interface{}) {
	w := &entityWalk{svc: s, server: server, handles: []string{}, objects: map[string]interface{}{}}

	obj, ok := network.(map[string]interface{})
	if !ok {
		return w.handles, w.objects
	}
	for _, entity := range embeddedEntities(obj) {
		full := w.add(ctx, entity)
		if full == nil {
			continue
		}
		for _, nested := range embeddedEntities(full) {
			w.add(ctx, nested)
		}
	}
	return w.handles, w.objects
}

type entityWalk struct {
	svc     *ARINService
	server  *url.URL
	handles []string
	objects map[string]interface{}
}

// add records entity under its handle and returns the most complete view of
// it. Unnamed and already seen entities return nil.
func (w *entityWalk) add(ctx context.Context, entity map[string]interface{}) map[string]interface{} {
	handle, _ := entity["handle"].(string)
	if handle == "" {
		return nil
	}
	if _, seen := w.objects[handle]; seen {
		return nil
	}
	w.handles = append(w.handles, handle)
	w.objects[handle] = entity

	if _, hasCard := entity["vcardArray"]; hasCard || w.server == nil {
		return entity
	}
	full, err := w.svc.fetchEntity(ctx, handle, w.server)
	if err != nil {
		utils.Log.Debug("entity referral failed", utils.Field("handle", handle), utils.Field("error", err.Error()))
		return entity
	}
	if m, ok := full.(map[string]interface{}); ok {
		w.objects[handle] = m
		return m
	}
	return entity
}

func embeddedEntities(obj map[string]interface{}) []map[string]interface{} {
	list, _ := obj["entities"].([]interface{})
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if entity, ok := item.(map[string]interface{}); ok {
			out = append(out, entity)
		}
	}
	return out
}

func (s *ARINService) fetchEntity(ctx context.Context, handle string, server *url.URL) (interface{}, error) {
	req := rdap.NewEntityRequest(handle).WithContext(ctx).WithServer(server)
	resp, err := s.RDAP.Do(req)
	if err != nil {
		return nil, err
	}
	return rawBody(resp)
}

// rawBody decodes the body of the answering server without a schema, so the
// registry's own field names reach the report.
func rawBody(resp *rdap.Response) (interface{}, error) {
	for i := len(resp.HTTP) - 1; i >= 0; i-- {
		h := resp.HTTP[i]
		if h.Error != nil || len(h.Body) == 0 {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(h.Body, &v); err != nil {
			return nil, errors.Wrap(err, "decode rdap body")
		}
		return v, nil
	}
	return nil, errors.New("rdap response has no body")
}

// serverOf works out which base URL answered, so entity referrals go to the
// same registry.
func serverOf(resp *rdap.Response, fixed *url.URL) *url.URL {
	if fixed != nil {
		return fixed
	}
	for i := len(resp.HTTP) - 1; i >= 0; i-- {
		h := resp.HTTP[i]
		if h.Error != nil {
			continue
		}
		idx := strings.LastIndex(h.URL, "/ip/")
		if idx < 0 {
			continue
		}
		if u, err := url.Parse(h.URL[:idx]); err == nil {
			return u
		}
	}
	return nil
}
