package model

import (
	"strconv"
	"time"
)

// Mail represents one inbound bus message
type Mail struct {
	Key    string    `json:"key"`
	Str    string    `json:"str,omitempty"`
	Num    float64   `json:"num,omitempty"`
	IsNum  bool      `json:"is_num"`
	Time   time.Time `json:"time"`
	Source string    `json:"source,omitempty"`
}

// StringMail creates a string-valued message
func StringMail(key, value string, at time.Time) Mail {
	return Mail{Key: key, Str: value, Time: at}
}

// NumberMail creates a number-valued message
func NumberMail(key string, value float64, at time.Time) Mail {
	return Mail{Key: key, Num: value, IsNum: true, Time: at}
}

// Value returns the message payload rendered as a string
func (m Mail) Value() string {
	if m.IsNum {
		return strconv.FormatFloat(m.Num, 'f', -1, 64)
	}
	return m.Str
}

// Posting represents one outbound (variable, value) pair
type Posting struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AlertEvent records one alert firing
type AlertEvent struct {
	ID       string    `json:"id"`
	Contact  string    `json:"contact"`
	AlertID  string    `json:"alert_id"`
	Var      string    `json:"var"`
	Value    string    `json:"value"`
	Range    float64   `json:"range"`
	Resolved bool      `json:"resolved"`
	Time     time.Time `json:"time"`
}

// Seconds converts a wall-clock time into floating-point epoch seconds,
// the unit used by report timestamps.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
