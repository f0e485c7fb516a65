package ajax

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/go-playground/form"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"

	"github.com/iota-uz/flockdesk/modules/dashboard/domain/entity"
	"github.com/iota-uz/flockdesk/pkg/configuration"
	"github.com/iota-uz/flockdesk/pkg/serrors"
)

var (
	ErrTransport = serrors.NewError("AJAX_TRANSPORT", "request did not complete", "")
	ErrStatus    = serrors.NewError("AJAX_STATUS", "server answered with a non-success status", "")
	ErrMalformed = serrors.NewError("AJAX_MALFORMED", "response body is not the expected JSON", "")
	ErrRejected  = serrors.NewError("AJAX_REJECTED", "server reported the operation as unsuccessful", "")
)

// Result labels used in logs and metrics.
const (
	ResultOK        = "ok"
	ResultTransport = "transport"
	ResultStatus    = "status"
	ResultMalformed = "malformed"
	ResultRejected  = "rejected"
	ResultCancelled = "cancelled"
)

// Classify maps an error returned by Client to a result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.Canceled):
		return ResultCancelled
	case errors.Is(err, ErrRejected):
		return ResultRejected
	case errors.Is(err, ErrMalformed):
		return ResultMalformed
	case errors.Is(err, ErrStatus):
		return ResultStatus
	default:
		return ResultTransport
	}
}

type Options struct {
	BaseURL           string
	SessionCookieName string
	SessionID         string
	CSRFCookieName    string
	CSRFToken         string
	RequestIDHeader   string
	// Zero leaves the request without a client-side deadline.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// OptionsFromConfiguration copies the server settings out of conf.
func OptionsFromConfiguration(conf *configuration.Configuration) Options {
	return Options{
		BaseURL:           conf.Server.BaseURL,
		SessionCookieName: conf.Server.SessionCookieName,
		SessionID:         conf.Server.SessionID,
		CSRFCookieName:    conf.Server.CSRFCookieName,
		CSRFToken:         conf.Server.CSRFToken,
		RequestIDHeader:   conf.RequestIDHeader,
		Timeout:           conf.Server.RequestTimeout,
		Logger:            conf.Logger(),
	}
}

// Client talks to the dashboard's AJAX endpoints the way the page's scripts do.
type Client struct {
	baseURL    *url.URL
	opts       Options
	httpClient *http.Client
	log        *logrus.Logger
	tracer     trace.Tracer
	encoder    *form.Encoder
}

func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid base url: %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Cookies the server sets (a rotated csrftoken) ride along on later calls.
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, errors.Wrap(err, "cookie jar")
		}
		httpClient = &http.Client{Jar: jar}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL:    u,
		opts:       opts,
		httpClient: httpClient,
		log:        log,
		tracer:     otel.Tracer("github.com/iota-uz/flockdesk/ajax"),
		encoder:    form.NewEncoder(),
	}, nil
}

// BaseURL returns the server origin the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   url.Values
	accept string
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, string, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + cl.path
	if cl.query != nil {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		body = strings.NewReader(cl.body.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, "", errors.Wrap(err, "build request")
	}

	accept := cl.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	requestID := uuid.NewString()
	if c.opts.RequestIDHeader != "" {
		req.Header.Set(c.opts.RequestIDHeader, requestID)
	}
	if c.opts.SessionCookieName != "" && c.opts.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: c.opts.SessionCookieName, Value: c.opts.SessionID})
	}
	if cl.method == http.MethodPost && c.opts.CSRFToken != "" {
		if c.opts.CSRFCookieName != "" {
			req.AddCookie(&http.Cookie{Name: c.opts.CSRFCookieName, Value: c.opts.CSRFToken})
		}
		req.Header.Set("X-CSRFToken", c.opts.CSRFToken)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, requestID, nil
}

// do performs one round trip and returns the status code and raw body.
// A non-2xx status is reported as ErrStatus together with the body so
// callers can still read the server's explanation.
func (c *Client) do(ctx context.Context, cl call) (int, []byte, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "ajax."+cl.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", cl.method),
			attribute.String("http.path", cl.path),
		),
	)
	defer span.End()

	status, body, err := c.roundTrip(ctx, cl)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return status, body, err
}

func (c *Client) roundTrip(ctx context.Context, cl call) (int, []byte, error) {
	req, requestID, err := c.newRequest(ctx, cl)
	if err != nil {
		return 0, nil, err
	}
	logger := c.log.WithFields(logrus.Fields{
		"op":         cl.op,
		"method":     cl.method,
		"path":       cl.path,
		"request-id": requestID,
	})
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, errors.Wrap(ctx.Err(), cl.op)
		}
		return 0, nil, errors.Wrapf(ErrTransport, "%s %s: %v", cl.method, cl.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(ErrTransport, "%s %s: read body: %v", cl.method, cl.path, err)
	}
	logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("ajax round trip")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, errors.Wrapf(ErrStatus, "%s %s: status %d", cl.method, cl.path, resp.StatusCode)
	}
	return resp.StatusCode, body, nil
}

// decode unmarshals a JSON body into out. Bodies that are not JSON at all,
// typically a login page served after the session expired, are sniffed so the
// log says what came back instead.
func (c *Client) decode(cl call, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		detected := mimetype.Detect(body)
		c.log.WithFields(logrus.Fields{
			"op":        cl.op,
			"path":      cl.path,
			"mime-type": detected.String(),
			"bytes":     len(body),
		}).Error("ajax: response is not JSON")
		return errors.Wrapf(ErrMalformed, "%s %s: %s body: %v", cl.method, cl.path, detected.String(), err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, cl call, out any) (int, error) {
	status, body, err := c.do(ctx, cl)
	if err != nil {
		if body != nil && errors.Is(err, ErrStatus) && out != nil {
			// Best effort: error bodies usually carry {"error"} or {"errors"}.
			_ = json.Unmarshal(body, out)
		}
		return status, err
	}
	if out == nil {
		return status, nil
	}
	return status, c.decode(cl, body, out)
}

// GetFragment fetches a fragment endpoint and returns its html field.
func (c *Client) GetFragment(ctx context.Context, op, path string) (string, error) {
	cl := call{op: op, method: http.MethodGet, path: path}
	var frag Fragment
	if _, err := c.doJSON(ctx, cl, &frag); err != nil {
		if frag.Error != "" {
			return "", errors.Wrap(err, frag.Error)
		}
		return "", err
	}
	if frag.HTML == nil {
		return "", errors.Wrapf(ErrMalformed, "%s %s: no html field", cl.method, cl.path)
	}
	return *frag.HTML, nil
}

// Detail fetches the detail fragment of ref.
func (c *Client) Detail(ctx context.Context, ref entity.Reference) (string, error) {
	return c.GetFragment(ctx, "detail", entity.DetailPath(ref.Kind, ref.ID))
}

// Form fetches the edit form of ref, or the create form when ref has no id.
func (c *Client) Form(ctx context.Context, ref entity.Reference) (string, error) {
	return c.GetFragment(ctx, "form", entity.FormPath(ref.Kind, ref.ID))
}

func (c *Client) mutate(ctx context.Context, cl call) (MutationResult, int, error) {
	var res MutationResult
	status, err := c.doJSON(ctx, cl, &res)
	if err != nil {
		return res, status, err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "success flag not set"
		}
		return res, status, errors.Wrapf(ErrRejected, "%s %s: %s", cl.method, cl.path, msg)
	}
	return res, status, nil
}

// Delete posts the delete request for ref. A 2xx answer without the success
// flag is reported as ErrRejected.
func (c *Client) Delete(ctx context.Context, ref entity.Reference) (MutationResult, error) {
	res, _, err := c.mutate(ctx, call{
		op:     "delete",
		method: http.MethodPost,
		path:   entity.DeletePath(ref.Kind, ref.ID),
		body:   url.Values{},
	})
	return res, err
}

// Submit posts a create or update form. The status code is returned so
// callers can tell validation failures (400) apart from the rest.
func (c *Client) Submit(ctx context.Context, ref entity.Reference, values url.Values) (MutationResult, int, error) {
	if values == nil {
		values = url.Values{}
	}
	return c.mutate(ctx, call{
		op:     "submit",
		method: http.MethodPost,
		path:   entity.SubmitPath(ref.Kind, ref.ID),
		body:   values,
	})
}

type bulkDeleteRequest struct {
	IDs []string `form:"ids"`
}

// BulkDelete posts every id in one request.
func (c *Client) BulkDelete(ctx context.Context, kind entity.Kind, ids []string) (BulkResult, error) {
	values, err := c.encoder.Encode(bulkDeleteRequest{IDs: ids})
	if err != nil {
		return BulkResult{}, errors.Wrap(err, "encode bulk delete")
	}
	cl := call{
		op:     "bulk-delete",
		method: http.MethodPost,
		path:   entity.BulkDeletePath(kind),
		body:   values,
	}
	var res BulkResult
	if _, err := c.doJSON(ctx, cl, &res); err != nil {
		return res, err
	}
	if !res.Success && len(res.Deleted) == 0 {
		msg := res.Error
		if msg == "" {
			msg = "nothing deleted"
		}
		return res, errors.Wrapf(ErrRejected, "%s %s: %s", cl.method, cl.path, msg)
	}
	return res, nil
}

func (c *Client) Search(ctx context.Context, query string) (SearchResults, error) {
	var res SearchResults
	_, err := c.doJSON(ctx, call{
		op:     "search",
		method: http.MethodGet,
		path:   entity.SearchPath,
		query:  url.Values{"q": {query}},
	}, &res)
	return res, err
}

func (c *Client) QuickStats(ctx context.Context) (QuickStats, error) {
	var res QuickStats
	_, err := c.doJSON(ctx, call{
		op:     "quick-stats",
		method: http.MethodGet,
		path:   entity.QuickStatsPath,
	}, &res)
	return res, err
}

// GetPage fetches a full HTML page, e.g. a listing to reload.
func (c *Client) GetPage(ctx context.Context, path string) (string, error) {
	_, body, err := c.do(ctx, call{
		op:     "page",
		method: http.MethodGet,
		path:   path,
		accept: "text/html",
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}
