package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"coffeewifi/client"
	"coffeewifi/model"
	"coffeewifi/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	formTokenTTL = time.Hour
	// formNonceCookie carries the nonce each add-cafe form token is bound to.
	formNonceCookie = "cafe_form_nonce"
)

// CafeAPI is the part of the Record Store API the pages use.
type CafeAPI interface {
	AllCafes(ctx context.Context) ([]model.Cafe, error)
	AddCafe(ctx context.Context, payload any) error
	ReportClosed(ctx context.Context, id string) error
}

type Server struct {
	api       CafeAPI
	secretKey string
	forms     *formValidator
	log       *zap.Logger
}

func NewServer(api CafeAPI, secretKey string, log *zap.Logger) *Server {
	return &Server{api: api, secretKey: secretKey, forms: newFormValidator(), log: log}
}

// Router builds the Presentation Server engine.
func (s *Server) Router() (*gin.Engine, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"yesno": func(b bool) string {
			if b {
				return "✔"
			}
			return "✘"
		},
		"deref": func(p *string) string {
			if p == nil {
				return ""
			}
			return *p
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.RequestLogger(s.log))
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.Home)
	router.GET("/cafes", s.Cafes)
	router.GET("/add", s.AddForm)
	router.POST("/add", s.AddSubmit)
	router.GET("/delete", s.Delete)
	return router, nil
}

func (s *Server) Home(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

func (s *Server) Cafes(c *gin.Context) {
	cafes, err := s.api.AllCafes(s.ctx(c))
	if err != nil {
		s.upstreamFailure(c, err)
		return
	}
	c.HTML(http.StatusOK, "cafes.html", gin.H{"Cafes": cafes})
}

func (s *Server) AddForm(c *gin.Context) {
	form := newForm()
	s.renderForm(c, http.StatusOK, &form, nil, "")
}

func (s *Server) AddSubmit(c *gin.Context) {
	var form CafeForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		form = newForm()
		s.renderForm(c, http.StatusBadRequest, &form, nil, "The form could not be read, please try again.")
		return
	}
	form.trim()

	nonce, _ := c.Cookie(formNonceCookie)
	if err := utils.ValidateFormToken(s.secretKey, form.CSRFToken, nonce); err != nil {
		s.log.Warn("rejected add-cafe form token", zap.Error(err))
		s.renderForm(c, http.StatusBadRequest, &form, nil, "The form has expired, please submit it again.")
		return
	}

	if errs := s.forms.Validate(&form); len(errs) > 0 {
		s.renderForm(c, http.StatusOK, &form, errs, errs["_form"])
		return
	}

	if err := s.api.AddCafe(s.ctx(c), form); err != nil {
		if client.StatusOf(err) == http.StatusConflict {
			s.renderForm(c, http.StatusOK, &form, map[string]string{"cafe": "A cafe with this name already exists."}, "")
			return
		}
		s.upstreamFailure(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/cafes")
}

func (s *Server) Delete(c *gin.Context) {
	id := c.Query("index")
	if id == "" {
		s.renderError(c, http.StatusBadRequest, "No cafe was selected.")
		return
	}
	if err := s.api.ReportClosed(s.ctx(c), id); err != nil {
		s.upstreamFailure(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/cafes")
}

func (s *Server) renderForm(c *gin.Context, status int, form *CafeForm, errs map[string]string, formError string) {
	nonce := utils.NewFormNonce()
	token, err := utils.GenerateFormToken(s.secretKey, nonce, formTokenTTL)
	if err != nil {
		s.log.Error("sign form token", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "Something went wrong, please try again later.")
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(formNonceCookie, nonce, int(formTokenTTL.Seconds()), "/add", "", c.Request.TLS != nil, true)
	c.HTML(status, "add.html", gin.H{
		"Fields":    form.view(errs),
		"FormError": formError,
		"CSRFToken": token,
	})
}

// upstreamFailure maps a Record Store API error to a failure page.
func (s *Server) upstreamFailure(c *gin.Context, err error) {
	_ = c.Error(err)
	switch client.StatusOf(err) {
	case http.StatusNotFound:
		s.renderError(c, http.StatusNotFound, "That cafe no longer exists.")
	case http.StatusForbidden:
		s.log.Error("cafe api rejected the shared api-key", zap.Error(err))
		s.renderError(c, http.StatusInternalServerError, "The server is misconfigured.")
	default:
		s.log.Error("cafe api unavailable", zap.Error(err))
		s.renderError(c, http.StatusBadGateway, "The cafe service is unavailable right now.")
	}
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error.html", gin.H{
		"Status":  status,
		"Title":   http.StatusText(status),
		"Message": message,
	})
}

func (s *Server) ctx(c *gin.Context) context.Context {
	return client.WithRequestID(c.Request.Context(), utils.RequestIDFrom(c))
}
