// Package hire relays contact form submissions to an external endpoint and
// limits each visitor to one submission per cooldown window.
package hire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/snake-arcade/store"
)

const DefaultCooldown = 24 * time.Hour

var (
	ErrMissingField = errors.New("missing required field")
	ErrCooldown     = errors.New("an inquiry was already sent recently")
	ErrDelivery     = errors.New("failed to deliver inquiry")
)

// Form is the contact form as posted by the page
type Form struct {
	Company    string `json:"company"`
	Pay        string `json:"pay"`
	Contact    string `json:"contact"`
	JobDetails string `json:"jobDetails"`
}

// Validate trims every field and requires all of them
func (f *Form) Validate() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"company", &f.Company},
		{"pay", &f.Pay},
		{"contact", &f.Contact},
		{"jobDetails", &f.JobDetails},
	}
	for _, field := range fields {
		*field.value = strings.TrimSpace(*field.value)
		if *field.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}
	}
	return nil
}

type payload struct {
	Form
	Timestamp string `json:"timestamp"`
}

// InquiryStore keeps submitted inquiries
type InquiryStore interface {
	HashIP(ip string) string
	SaveInquiry(ctx context.Context, inq store.Inquiry) (int64, error)
	LastInquiryAt(ctx context.Context, hashedIP string) (time.Time, error)
}

// Submitter validates, rate limits, relays and records inquiries
type Submitter struct {
	endpoint   string
	httpClient *http.Client
	store      InquiryStore
	cooldown   time.Duration
	now        func() time.Time
}

// NewSubmitter creates a submitter. An empty endpoint records inquiries
// without relaying them; a non-positive cooldown uses DefaultCooldown.
func NewSubmitter(endpoint string, inquiries InquiryStore, cooldown time.Duration) *Submitter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Submitter{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		store:    inquiries,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Cooldown returns the time a visitor must wait between inquiries
func (s *Submitter) Cooldown() time.Duration {
	return s.cooldown
}

// Submit sends form on behalf of the visitor at clientIP
func (s *Submitter) Submit(ctx context.Context, form Form, clientIP string) (*store.Inquiry, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	hashed := s.store.HashIP(clientIP)
	last, err := s.store.LastInquiryAt(ctx, hashed)
	switch {
	case err == nil:
		if wait := s.cooldown - s.now().Sub(last); wait > 0 {
			return nil, fmt.Errorf("%w: try again in %s", ErrCooldown, wait.Round(time.Minute))
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	now := s.now().UTC()
	if err := s.relay(ctx, form, now); err != nil {
		return nil, err
	}

	inq := store.Inquiry{
		UUID:       uuid.New().String(),
		Company:    form.Company,
		Pay:        form.Pay,
		Contact:    form.Contact,
		JobDetails: form.JobDetails,
		HashedIP:   hashed,
		CreatedAt:  now,
	}
	id, err := s.store.SaveInquiry(ctx, inq)
	if err != nil {
		return nil, err
	}
	inq.ID = id

	log.Printf("[HIRE] inquiry %s from %s", inq.UUID, inq.Company)
	return &inq, nil
}

// relay posts the form to the endpoint. Only transport failures count; the
// response is never inspected.
func (s *Submitter) relay(ctx context.Context, form Form, at time.Time) error {
	if s.endpoint == "" {
		return nil
	}

	body, err := json.Marshal(payload{Form: form, Timestamp: at.Format("2006-01-02T15:04:05.000Z07:00")})
	if err != nil {
		return fmt.Errorf("failed to marshal inquiry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
