package uasdochttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://uasdoc.faa.gov/api/v1"

type Client struct {
	baseURL       string
	httpc         *http.Client
	lookupTimeout time.Duration
}

// New builds a client for the uasdoc API. timeout bounds listing and per-record
// calls; lookupTimeout bounds single-serial lookups, which sit on a caller's
// request path.
func New(baseURL string, timeout, lookupTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpc:         &http.Client{Timeout: timeout},
		lookupTimeout: lookupTimeout,
	}
}

type itemsEnvelope[T any] struct {
	Data *struct {
		Items []T `json:"items"`
	} `json:"data"`
}

type docRevItem struct {
	TrackingNumber string `json:"trackingNumber"`
	MakeName       string `json:"makeName"`
	ModelName      string `json:"modelName"`
	Status         string `json:"status"`
	DocType        string `json:"docType"`
	UpdatedAt      string `json:"updatedAt"`
}

type serialItem struct {
	Value     string `json:"value"`
	Start     string `json:"start"`
	End       string `json:"end"`
	MfrSerial string `json:"mfrSerial"`
	UpdatedAt string `json:"updatedAt"`
}

func (c *Client) ListUpdated(ctx context.Context, pageIndex, pageSize int) (faa.Page, error) {
	if pageSize <= 0 {
		pageSize = faa.DefaultPageSize
	}
	q := url.Values{}
	q.Set("itemsPerPage", strconv.Itoa(pageSize))
	q.Set("pageIndex", strconv.Itoa(pageIndex))
	q.Set("orderBy[0][0]", "updatedAt")
	q.Set("orderBy[0][1]", "DESC")
	q.Set("docType", "rid")

	var env itemsEnvelope[docRevItem]
	if err := c.getJSON(ctx, "/publicDOCRev", q, &env); err != nil {
		return faa.Page{}, err
	}
	if env.Data == nil {
		return faa.Page{}, fmt.Errorf("%w: publicDOCRev: missing data", models.ErrMalformedPayload)
	}

	page := faa.Page{Index: pageIndex, Items: make([]faa.RIDRecord, 0, len(env.Data.Items))}
	for _, it := range env.Data.Items {
		page.Items = append(page.Items, faa.RIDRecord{
			TrackingNumber: strings.TrimSpace(it.TrackingNumber),
			MakeName:       it.MakeName,
			ModelName:      it.ModelName,
			Status:         it.Status,
			DocType:        it.DocType,
			UpdatedAt:      it.UpdatedAt,
		})
	}
	return page, nil
}

func (c *Client) GetSerials(ctx context.Context, trackingNumber string) ([]faa.SerialItem, error) {
	q := url.Values{}
	q.Set("snapshot", "true")
	q.Set("isPublic", "true")
	q.Set("findBy", "docTrackingNumber")
	q.Set("docTrackingNumber", trackingNumber)

	var env itemsEnvelope[serialItem]
	if err := c.getJSON(ctx, "/serialNumbers", q, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: serialNumbers %s: missing data", models.ErrMalformedPayload, trackingNumber)
	}

	out := make([]faa.SerialItem, 0, len(env.Data.Items))
	for _, it := range env.Data.Items {
		out = append(out, faa.SerialItem{
			Value:     it.Value,
			Start:     it.Start,
			End:       it.End,
			MfrSerial: it.MfrSerial,
			UpdatedAt: it.UpdatedAt,
		})
	}
	return out, nil
}

func (c *Client) FindBySerial(ctx context.Context, serial string) (*faa.SerialMatch, error) {
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("orderBy[0]", "updatedAt")
	q.Set("orderBy[1]", "DESC")
	q.Set("findBy", "serialNumber")
	q.Set("serialNumber", serial)

	var env itemsEnvelope[docRevItem]
	if err := c.getJSON(ctx, "/serialNumbers", q, &env); err != nil {
		return nil, err
	}
	if env.Data == nil || len(env.Data.Items) == 0 {
		return nil, nil
	}

	// Newest first; the first item wins.
	it := env.Data.Items[0]
	if it.TrackingNumber == "" {
		return nil, fmt.Errorf("%w: serialNumbers %s: missing trackingNumber", models.ErrMalformedPayload, serial)
	}
	return &faa.SerialMatch{
		TrackingNumber: it.TrackingNumber,
		DocType:        it.DocType,
		Status:         it.Status,
		MakeName:       it.MakeName,
		ModelName:      it.ModelName,
		UpdatedAt:      it.UpdatedAt,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("client", "external")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrRemoteUnavailable, errors.Wrap(err, "do request"))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: uasdoc %s http %d", models.ErrRemoteUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", models.ErrMalformedPayload, errors.Wrap(err, "decode"))
	}
	return nil
}
