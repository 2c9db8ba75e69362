package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Cafe is the only persisted entity. JSON keys match the column names.
type Cafe struct {
	ID           uint    `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Name         string  `json:"name" gorm:"column:name;size:250;uniqueIndex;not null"`
	MapURL       string  `json:"map_url" gorm:"column:map_url;size:500;not null"`
	ImgURL       string  `json:"img_url" gorm:"column:img_url;size:500;not null"`
	Location     string  `json:"location" gorm:"column:location;size:250;not null"`
	Seats        string  `json:"seats" gorm:"column:seats;size:250;not null"`
	HasToilet    bool    `json:"has_toilet" gorm:"column:has_toilet;not null"`
	HasWifi      bool    `json:"has_wifi" gorm:"column:has_wifi;not null"`
	HasSockets   bool    `json:"has_sockets" gorm:"column:has_sockets;not null"`
	CanTakeCalls bool    `json:"can_take_calls" gorm:"column:can_take_calls;not null"`
	CoffeePrice  *string `json:"coffee_price" gorm:"column:coffee_price;size:250"`
	OpenTime     string  `json:"open_time" gorm:"column:open_time;size:250;not null"`
	CloseTime    string  `json:"close_time" gorm:"column:close_time;size:250;not null"`
}

func (Cafe) TableName() string { return "cafes" }

// Flag is a boolean that arrives on the wire as "True"/"False" or as a JSON bool.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case `true`, `"True"`:
		*f = true
		return nil
	case `false`, `"False"`:
		*f = false
		return nil
	}
	return fmt.Errorf("invalid flag %s: want \"True\" or \"False\"", data)
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return json.Marshal("True")
	}
	return json.Marshal("False")
}

// ParseFlag converts the literal strings used by forms and spreadsheets.
func ParseFlag(s string) (Flag, error) {
	switch s {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q: want \"True\" or \"False\"", s)
}

// AddCafeRequest is the body accepted by POST /add.
type AddCafeRequest struct {
	Cafe        string `json:"cafe" binding:"required"`
	Map         string `json:"map" binding:"required"`
	Image       string `json:"image" binding:"required"`
	Location    string `json:"location" binding:"required"`
	Seats       string `json:"seats" binding:"required"`
	Toilet      *Flag  `json:"toilet" binding:"required"`
	Wifi        *Flag  `json:"wifi" binding:"required"`
	Socket      *Flag  `json:"socket" binding:"required"`
	PhoneCall   *Flag  `json:"phone_call" binding:"required"`
	CoffeePrice string `json:"coffee_price"`
	OpenTime    string `json:"open_time" binding:"required"`
	CloseTime   string `json:"close_time" binding:"required"`
}

// ToCafe builds the record to insert. Callers must have validated the request.
func (r AddCafeRequest) ToCafe() Cafe {
	cafe := Cafe{
		Name:         r.Cafe,
		MapURL:       r.Map,
		ImgURL:       r.Image,
		Location:     r.Location,
		Seats:        r.Seats,
		HasToilet:    flagValue(r.Toilet),
		HasWifi:      flagValue(r.Wifi),
		HasSockets:   flagValue(r.Socket),
		CanTakeCalls: flagValue(r.PhoneCall),
		OpenTime:     r.OpenTime,
		CloseTime:    r.CloseTime,
	}
	if r.CoffeePrice != "" {
		price := r.CoffeePrice
		cafe.CoffeePrice = &price
	}
	return cafe
}

func flagValue(f *Flag) bool {
	return f != nil && bool(*f)
}
