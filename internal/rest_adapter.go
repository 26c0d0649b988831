package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lychee-technology/dataeditor"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RESTAdapterConfig configures a remote collection proxy.
type RESTAdapterConfig struct {
	Address     string
	Credentials dataeditor.Credentials
	Timeout     time.Duration
	// RequestsPerSecond throttles outgoing calls; zero disables throttling.
	RequestsPerSecond float64
	// Breaker fails calls fast while the remote keeps erroring; nil disables it.
	Breaker *CircuitBreaker
	Client  *http.Client
}

type restAdapter struct {
	address     string
	credentials dataeditor.Credentials
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *CircuitBreaker
}

// NewRESTAdapter returns an adapter that forwards every operation to a remote collection:
// GET base/, GET base/{id}, POST base/, PUT base/{id}, DELETE base/{id}.
func NewRESTAdapter(cfg RESTAdapterConfig) dataeditor.Adapter {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	a := &restAdapter{
		address:     strings.TrimRight(cfg.Address, "/"),
		credentials: cfg.Credentials,
		client:      client,
		breaker:     cfg.Breaker,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return a
}

func (a *restAdapter) entryURL(id string) string {
	return a.address + "/" + url.PathEscape(id)
}

// do sends one request and decodes a JSON response into out when there is a body.
// It returns the response status code.
func (a *restAdapter) do(ctx context.Context, method, target string, body any, out any) (int, error) {
	if a.breaker.IsOpen() {
		return 0, dataeditor.NewAdapterError(fmt.Sprintf("remote collection %s is unavailable", a.address), nil)
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return 0, dataeditor.NewAdapterError("request cancelled while throttled", err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, dataeditor.NewAdapterError("failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, dataeditor.NewAdapterError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !a.credentials.IsZero() {
		req.SetBasicAuth(a.credentials.Login, a.credentials.Password)
	}

	zap.S().Debugw("Calling remote collection", "method", method, "url", target)
	resp, err := a.client.Do(req)
	if err != nil {
		a.breaker.RecordFailure()
		return 0, dataeditor.NewAdapterError(fmt.Sprintf("%s %s failed", method, target), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, dataeditor.NewAdapterError("failed to read response body", err)
	}
	if resp.StatusCode >= 500 {
		a.breaker.RecordFailure()
	} else {
		a.breaker.RecordSuccess()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, dataeditor.NewRemoteStatusError(resp.StatusCode)
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := unmarshalJSON(data, out); err != nil {
			return resp.StatusCode, dataeditor.NewAdapterError("failed to decode response body", err)
		}
	}
	return resp.StatusCode, nil
}

func (a *restAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	var records []dataeditor.Record
	if _, err := a.do(ctx, http.MethodGet, a.address+"/", nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []dataeditor.Record{}
	}
	return records, nil
}

func (a *restAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	var record dataeditor.Record
	status, err := a.do(ctx, http.MethodGet, a.entryURL(id), nil, &record)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *restAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	var created dataeditor.Record
	if _, err := a.do(ctx, http.MethodPost, a.address+"/", data, &created); err != nil {
		return nil, err
	}
	if created == nil {
		return dataeditor.CloneRecord(data), nil
	}
	return created, nil
}

func (a *restAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	var updated dataeditor.Record
	status, err := a.do(ctx, http.MethodPut, a.entryURL(id), data, &updated)
	if status == http.StatusNotFound {
		return nil, dataeditor.NewEntryNotFoundError(id).WithCause(err)
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return dataeditor.CloneRecord(data), nil
	}
	return updated, nil
}

func (a *restAdapter) Delete(ctx context.Context, id string) error {
	status, err := a.do(ctx, http.MethodDelete, a.entryURL(id), nil, nil)
	if status == http.StatusNotFound {
		return dataeditor.NewEntryNotFoundError(id).WithCause(err)
	}
	return err
}
