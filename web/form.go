package web

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CafeForm is the add-cafe form. Its JSON encoding is the body of POST /add
// on the Record Store API.
type CafeForm struct {
	Cafe        string `form:"cafe" json:"cafe" validate:"required"`
	Location    string `form:"location" json:"location" validate:"required"`
	Map         string `form:"map" json:"map" validate:"required,url"`
	OpenTime    string `form:"open_time" json:"open_time" validate:"required"`
	CloseTime   string `form:"close_time" json:"close_time" validate:"required"`
	Image       string `form:"image" json:"image" validate:"required,url"`
	CoffeePrice string `form:"coffee_price" json:"coffee_price" validate:"required"`
	Seats       string `form:"seats" json:"seats" validate:"required"`
	Wifi        string `form:"wifi" json:"wifi" validate:"required,oneof=False True"`
	Socket      string `form:"socket" json:"socket" validate:"required,oneof=False True"`
	Toilet      string `form:"toilet" json:"toilet" validate:"required,oneof=False True"`
	PhoneCall   string `form:"phone_call" json:"phone_call" validate:"required,oneof=False True"`
	CSRFToken   string `form:"csrf_token" json:"-"`
}

type formField struct {
	Name   string
	Label  string
	Choice bool
}

var formFields = []formField{
	{Name: "cafe", Label: "Cafe Name"},
	{Name: "location", Label: "Cafe City"},
	{Name: "map", Label: "Cafe Location on Google Maps (URL)"},
	{Name: "open_time", Label: "Opening Time e.g. 8AM"},
	{Name: "close_time", Label: "Closing Time e.g. 5:30PM"},
	{Name: "image", Label: "Cafe Image (URL)"},
	{Name: "coffee_price", Label: "Coffee Price"},
	{Name: "seats", Label: "Number of Seats"},
	{Name: "wifi", Label: "Is WiFi Available?", Choice: true},
	{Name: "socket", Label: "Are there Sockets?", Choice: true},
	{Name: "toilet", Label: "Are there Toilets?", Choice: true},
	{Name: "phone_call", Label: "Can you take a Phone Call?", Choice: true},
}

var choices = []string{"False", "True"}

// fieldView is what add.html renders for one input.
type fieldView struct {
	Name    string
	Label   string
	Value   string
	Choices []string
	Error   string
}

func newForm() CafeForm {
	return CafeForm{Wifi: "False", Socket: "False", Toilet: "False", PhoneCall: "False"}
}

func (f *CafeForm) values() map[string]string {
	return map[string]string{
		"cafe":         f.Cafe,
		"location":     f.Location,
		"map":          f.Map,
		"open_time":    f.OpenTime,
		"close_time":   f.CloseTime,
		"image":        f.Image,
		"coffee_price": f.CoffeePrice,
		"seats":        f.Seats,
		"wifi":         f.Wifi,
		"socket":       f.Socket,
		"toilet":       f.Toilet,
		"phone_call":   f.PhoneCall,
	}
}

func (f *CafeForm) trim() {
	for _, p := range []*string{
		&f.Cafe, &f.Location, &f.Map, &f.OpenTime, &f.CloseTime, &f.Image,
		&f.CoffeePrice, &f.Seats, &f.Wifi, &f.Socket, &f.Toilet, &f.PhoneCall,
	} {
		*p = strings.TrimSpace(*p)
	}
}

func (f *CafeForm) view(errs map[string]string) []fieldView {
	values := f.values()
	out := make([]fieldView, 0, len(formFields))
	for _, ff := range formFields {
		v := fieldView{Name: ff.Name, Label: ff.Label, Value: values[ff.Name], Error: errs[ff.Name]}
		if ff.Choice {
			v.Choices = choices
		}
		out = append(out, v)
	}
	return out
}

type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &formValidator{v: v}
}

// Validate returns a message per invalid field, keyed by form name.
func (fv *formValidator) Validate(f *CafeForm) map[string]string {
	errs := map[string]string{}
	err := fv.v.Struct(f)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_form"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			errs[fe.Field()] = "This field is required."
		case "url":
			errs[fe.Field()] = "Invalid URL."
		case "oneof":
			errs[fe.Field()] = "Not a valid choice."
		default:
			errs[fe.Field()] = "Invalid value."
		}
	}
	return errs
}
