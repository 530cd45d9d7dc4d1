package erp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-timetable-proxy/internal/models"
)

// Upstream steps, used for error reporting and metrics labels.
const (
	StepLoginPage      = "login_page"
	StepCaptchaTrigger = "captcha_trigger"
	StepCaptchaImage   = "captcha_image"
	StepLogin          = "login"
	StepTimetable      = "timetable"
)

const timetableRoute = "timetables/universitymasteracademictimetableview/individualstudenttimetableget"

// Observer receives the duration and outcome of every upstream call.
type Observer interface {
	ObserveUpstream(step string, success bool, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL          string
	LoginPath        string
	TimetablePath    string
	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool
	Markup           Markup
	Logger           *zap.Logger
	Observer         Observer
}

// Client drives the portal's login pages. It holds no per-user state: every
// call builds its own cookie-jar session, optionally seeded from a ticket.
type Client struct {
	baseURL       *url.URL
	loginPath     string
	timetablePath string
	userAgent     string
	timeout       time.Duration
	cloudflare    bool
	markup        Markup
	logger        *zap.Logger
	observer      Observer
}

// Challenge is the result of opening a login session: the CAPTCHA image and the
// state needed to submit the login later.
type Challenge struct {
	CSRF        string
	Cookies     []models.Cookie
	Image       []byte
	ContentType string
}

// LoginRequest replays a Challenge's state with the user's answers.
type LoginRequest struct {
	CSRF        string
	Cookies     []models.Cookie
	Credentials models.Credentials
	Query       models.TimetableQuery
}

// NewClient validates opts and builds a Client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse portal base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("portal base url %q must be absolute", opts.BaseURL)
	}

	if opts.LoginPath == "" {
		opts.LoginPath = "/index.php?r=site%2Flogin"
	}
	if opts.TimetablePath == "" {
		opts.TimetablePath = "/index.php"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:       base,
		loginPath:     opts.LoginPath,
		timetablePath: opts.TimetablePath,
		userAgent:     opts.UserAgent,
		timeout:       opts.Timeout,
		cloudflare:    opts.CloudflareBypass,
		markup:        opts.Markup.withDefaults(),
		logger:        opts.Logger,
		observer:      opts.Observer,
	}, nil
}

// session is one cookie-persisting conversation with the portal.
type session struct {
	http *resty.Client
	jar  http.CookieJar
}

func (c *Client) newSession(cookies []models.Cookie) (*session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if len(cookies) > 0 {
		seeded := make([]*http.Cookie, 0, len(cookies))
		for _, ck := range cookies {
			seeded = append(seeded, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
		}
		jar.SetCookies(c.baseURL, seeded)
	}

	client := resty.New()
	client.SetBaseURL(c.baseURL.String())
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", c.userAgent)
	client.SetTimeout(c.timeout)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		resty.DomainCheckRedirectPolicy(c.baseURL.Hostname()),
	)
	if c.cloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &session{http: client, jar: jar}, nil
}

func (s *session) cookies(base *url.URL) []models.Cookie {
	raw := s.jar.Cookies(base)
	out := make([]models.Cookie, 0, len(raw))
	for _, ck := range raw {
		out = append(out, models.Cookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

// do runs one request, records it with the observer and turns transport
// failures and error statuses into *UpstreamError.
func (c *Client) do(step string, req *resty.Request, method, target string) (*resty.Response, error) {
	start := time.Now()
	res, err := req.Execute(method, target)
	ok := err == nil && res != nil && !res.IsError()
	if c.observer != nil {
		c.observer.ObserveUpstream(step, ok, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("portal request failed", zap.String("step", step), zap.Error(err))
		return nil, &UpstreamError{Step: step, Err: err}
	}
	if res.IsError() {
		c.logger.Warn("portal returned error status", zap.String("step", step), zap.Int("status", res.StatusCode()))
		return nil, &UpstreamError{Step: step, Status: res.StatusCode()}
	}
	return res, nil
}

func parseHTML(step string, body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s html: %w", step, err)
	}
	return doc, nil
}

// RequestCaptcha opens a fresh portal session: it reads the CSRF token from the
// login page, posts an empty login to make the portal render a CAPTCHA, then
// downloads the CAPTCHA image.
func (c *Client) RequestCaptcha(ctx context.Context) (*Challenge, error) {
	sess, err := c.newSession(nil)
	if err != nil {
		return nil, err
	}

	res, err := c.do(StepLoginPage, sess.http.R().SetContext(ctx), http.MethodGet, c.loginPath)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(StepLoginPage, res.Body())
	if err != nil {
		return nil, err
	}
	csrf, err := c.markup.CSRFToken(doc)
	if err != nil {
		return nil, err
	}

	res, err = c.do(StepCaptchaTrigger, sess.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_csrf":               csrf,
			"LoginForm[username]": "",
			"LoginForm[password]": "",
		}), http.MethodPost, c.loginPath)
	if err != nil {
		return nil, err
	}
	doc, err = parseHTML(StepCaptchaTrigger, res.Body())
	if err != nil {
		return nil, err
	}
	captchaURL, err := c.markup.CaptchaURL(doc, c.baseURL)
	if err != nil {
		return nil, err
	}

	res, err = c.do(StepCaptchaImage, sess.http.R().SetContext(ctx), http.MethodGet, captchaURL.String())
	if err != nil {
		return nil, err
	}

	return &Challenge{
		CSRF:        csrf,
		Cookies:     sess.cookies(c.baseURL),
		Image:       res.Body(),
		ContentType: res.Header().Get("Content-Type"),
	}, nil
}

// FetchTimetable logs in with the replayed session state and scrapes the
// student timetable for the requested term.
func (c *Client) FetchTimetable(ctx context.Context, req LoginRequest) (*models.Timetable, error) {
	sess, err := c.newSession(req.Cookies)
	if err != nil {
		return nil, err
	}

	res, err := c.do(StepLogin, sess.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_csrf":               req.CSRF,
			"LoginForm[username]": req.Credentials.Username,
			"LoginForm[password]": req.Credentials.Password,
			"LoginForm[captcha]":  req.Credentials.Captcha,
		}), http.MethodPost, c.loginPath)
	if err != nil {
		return nil, err
	}
	if !c.markup.LoggedIn(res.String()) {
		return nil, ErrLoginRejected
	}

	res, err = c.do(StepTimetable, sess.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(timetableParams(req.Query)), http.MethodGet, c.timetablePath)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(StepTimetable, res.Body())
	if err != nil {
		return nil, err
	}
	return c.markup.ParseTimetable(doc)
}

func timetableParams(q models.TimetableQuery) url.Values {
	values := url.Values{}
	values.Set("r", timetableRoute)
	values.Set("UniversityMasterAcademicTimetableView[academicyear]", q.AcademicYear)
	values.Set("UniversityMasterAcademicTimetableView[semesterid]", q.Semester)
	return values
}

// IsUpstream reports whether err came from talking to the portal rather than
// from its content.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
