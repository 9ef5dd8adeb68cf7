package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"PowerKeeper/internal/machine"
	"PowerKeeper/internal/predicate"
)

// HTTPSource queries a scheduler exporter over JSON/HTTP. One exporter serves
// the whole pool, so all queries are batched by machine name.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type jobAd struct {
	ID            string  `json:"id"`
	RequestCpus   float64 `json:"request_cpus"`
	RequestMemory float64 `json:"request_memory"`
	RequestDisk   float64 `json:"request_disk"`
	RequestGpus   float64 `json:"request_gpus"`
	Requirements  string  `json:"requirements"`
}

func (s *HTTPSource) PendingJobs(ctx context.Context) ([]*machine.Job, error) {
	var ads []jobAd
	if err := s.get(ctx, "/v1/jobs?status=idle", &ads); err != nil {
		return nil, err
	}

	jobs := make([]*machine.Job, 0, len(ads))
	for _, ad := range ads {
		req, err := predicate.Parse(ad.Requirements)
		if err != nil {
			log.Warnf("Skipping job %s with unparsable requirements: %v", ad.ID, err)
			continue
		}
		jobs = append(jobs, &machine.Job{
			ID:            ad.ID,
			RequestCpus:   ad.RequestCpus,
			RequestMemory: ad.RequestMemory,
			RequestDisk:   ad.RequestDisk,
			RequestGpus:   ad.RequestGpus,
			Requirements:  req,
		})
	}
	return jobs, nil
}

func (s *HTTPSource) ActiveMachines(ctx context.Context, names []string) (map[string]bool, error) {
	return s.queryMachines(ctx, "/v1/machines/active", names, 0)
}

func (s *HTTPSource) ClaimedMachines(ctx context.Context, names []string) (map[string]bool, error) {
	return s.queryMachines(ctx, "/v1/machines/claimed", names, 0)
}

func (s *HTTPSource) IdleLongerThan(ctx context.Context, names []string, idleSeconds int64) (map[string]bool, error) {
	return s.queryMachines(ctx, "/v1/machines/idle", names, idleSeconds)
}

func (s *HTTPSource) queryMachines(ctx context.Context, path string, names []string, idleSeconds int64) (map[string]bool, error) {
	reqBody := struct {
		Machines    []string `json:"machines"`
		IdleSeconds int64    `json:"idle_seconds,omitempty"`
	}{Machines: names, IdleSeconds: idleSeconds}

	var respBody struct {
		Machines []string `json:"machines"`
	}
	if err := s.post(ctx, path, reqBody, &respBody); err != nil {
		return nil, err
	}

	result := make(map[string]bool, len(respBody.Machines))
	for _, name := range respBody.Machines {
		result[name] = true
	}
	return result, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	return s.do(req, out)
}

func (s *HTTPSource) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *HTTPSource) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("scheduler exporter unreachable: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exporter request failed with status %d: %s", resp.StatusCode, string(body))
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("unexpected content type %s: %s", resp.Header.Get("Content-Type"), string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode exporter response: %v", err)
	}
	return nil
}
