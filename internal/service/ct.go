package service

import (
	"context"
	"encoding/json"
	"exposure/internal/model"
	"exposure/internal/utils"
	"fmt"
	"net/http"
	"net/url"
)

const ctErrorPrefix = "Error retrieving information from crt.sh: "

var CTURL = "https://crt.sh/"

type CTService struct {
	Client   *http.Client
	Endpoint string
}

func NewCTService(client *http.Client, endpoint string) *CTService {
	if endpoint == "" {
		endpoint = CTURL
	}
	return &CTService{Client: client, Endpoint: endpoint}
}

// Lookup returns every certificate record crt.sh holds for domain, decoded
// but otherwise untouched.
func (s *CTService) Lookup(ctx context.Context, domain string) model.LookupResult {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return model.Failure(ctErrorPrefix + err.Error())
	}
	q := u.Query()
	q.Set("q", domain)
	q.Set("output", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Failure(ctErrorPrefix + err.Error())
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		utils.Log.Info("crt.sh request failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return model.Failure(ctErrorPrefix + err.Error())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		utils.Log.Info("crt.sh returned non-200", utils.Field("domain", domain), utils.Field("status", resp.StatusCode))
		return model.Failure(fmt.Sprintf("%sStatus code %d", ctErrorPrefix, resp.StatusCode))
	}

	var data interface{}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return model.Failure(ctErrorPrefix + err.Error())
	}

	return model.Success(data)
}
