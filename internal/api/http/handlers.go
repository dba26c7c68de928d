package http

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/linkpulse/url-shortener/docs"
	"github.com/linkpulse/url-shortener/internal/database"
	"github.com/linkpulse/url-shortener/internal/models"
	"github.com/linkpulse/url-shortener/internal/service"
	"github.com/linkpulse/url-shortener/pkg/response"
)

const (
	defaultReferrer = "direct"
	unknownGeo      = "unknown"
	logPackage      = "handler"
)

type shortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required,url"`
	Validity    *int   `json:"validity" validate:"omitempty,gt=0"`
	ShortCode   string `json:"shortcode" validate:"omitempty,alphanum,min=5,max=7"`
}

type shortenResponse struct {
	OriginalURL string    `json:"originalUrl"`
	ShortCode   string    `json:"shortcode"`
	ShortURL    string    `json:"shortUrl"`
	Expiry      time.Time `json:"expiry"`
}

type clickDetail struct {
	Timestamp time.Time `json:"timestamp"`
	Referrer  string    `json:"referrer"`
	Geo       any       `json:"geo"`
}

type statsResponse struct {
	OriginalURL  string        `json:"originalUrl"`
	CreatedAt    time.Time     `json:"createdAt"`
	Expiry       time.Time     `json:"expiry"`
	TotalClicks  int64         `json:"totalClicks"`
	ClickDetails []clickDetail `json:"clickDetails"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func toStatsResponse(url *models.URL) statsResponse {
	details := make([]clickDetail, 0, len(url.ClickDetails))

	for _, c := range url.ClickDetails {
		d := clickDetail{
			Timestamp: c.Timestamp,
			Referrer:  c.Referrer,
			Geo:       unknownGeo,
		}
		if d.Referrer == "" {
			d.Referrer = defaultReferrer
		}
		if c.Geo != nil {
			d.Geo = c.Geo
		}
		details = append(details, d)
	}

	return statsResponse{
		OriginalURL:  url.OriginalURL,
		CreatedAt:    url.CreatedAt,
		Expiry:       url.Expiry,
		TotalClicks:  url.Clicks,
		ClickDetails: details,
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// logServerError attaches err to the request log entry, which the request
// logger emits at Error level once the response is written.
func logServerError(r *http.Request, op string, err error) {
	httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err, "package": logPackage})
}

// logClientError records a rejected request at Warn level. The request
// logger itself reports 4xx responses at Info.
func logClientError(r *http.Request, op string, err error) {
	httplog.LogEntry(r.Context()).Warn("request rejected",
		slog.String("op", op),
		slog.Any("err", err),
		slog.String("package", logPackage),
	)
}

func handleHealth(svc URLService) http.HandlerFunc {
	const op = "api.http.handleHealth"

	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ping(r.Context()); err != nil {
			logServerError(r, op, err)

			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, healthResponse{Status: "unavailable"})
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, healthResponse{Status: "ok"})
	}
}

func handleSwaggerDocument() http.HandlerFunc {
	const op = "api.http.handleSwaggerDocument"

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")

		if _, err := w.Write(docs.Swagger); err != nil {
			logServerError(r, op, err)
		}
	}
}

func handleShortenURL(svc URLService, validate *validator.Validate, baseURL string) http.HandlerFunc {
	const op = "api.http.handleShortenURL"

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			logClientError(r, op, err)

			render.Status(r, http.StatusBadRequest)
			if errors.Is(err, io.EOF) {
				render.JSON(w, r, response.EmptyRequestBody)
				return
			}
			render.JSON(w, r, response.InvalidRequestBody)
			return
		}

		if err := validate.Struct(req); err != nil {
			logClientError(r, op, err)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Validation(err))
			return
		}

		params := service.ShortenParams{
			OriginalURL: req.OriginalURL,
			ShortCode:   req.ShortCode,
		}
		if req.Validity != nil {
			params.Validity = time.Duration(*req.Validity) * time.Minute
		}

		url, err := svc.ShortenURL(r.Context(), params)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrShortCodeConflict):
				logClientError(r, op, err)

				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.ShortCodeInUse)
			case errors.Is(err, service.ErrInvalidShortCode):
				logClientError(r, op, err)

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidShortCode)
			default:
				logServerError(r, op, err)

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerError)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, shortenResponse{
			OriginalURL: url.OriginalURL,
			ShortCode:   url.ShortCode,
			ShortURL:    baseURL + "/shorturls/" + url.ShortCode,
			Expiry:      url.Expiry,
		})
	}
}

// writeLookupError maps a failed short code lookup onto a response. Malformed
// codes cannot exist, so they are reported as not found.
func writeLookupError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidShortCode), errors.Is(err, database.ErrURLNotFound):
		logClientError(r, op, err)

		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.ShortURLNotFound)
	case errors.Is(err, service.ErrURLExpired):
		logClientError(r, op, err)

		render.Status(r, http.StatusGone)
		render.JSON(w, r, response.ShortURLExpired)
	default:
		logServerError(r, op, err)

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ServerError)
	}
}

func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.ResolveShortCode(r.Context(), shortCode, service.ClickMeta{
			Referrer: r.Referer(),
			ClientIP: clientIP(r),
		})
		if err != nil {
			writeLookupError(w, r, op, err)
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusFound)
	}
}

func handleGetURLStats(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		url, err := svc.GetURLStats(r.Context(), shortCode)
		if err != nil {
			writeLookupError(w, r, op, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, toStatsResponse(url))
	}
}
