package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Provider webhook form shapes. The provider sends
// application/x-www-form-urlencoded by default; capture only the fields the
// queue needs. Business logic is not made here.

type IncomingForm struct {
	CallSid    string
	From       string
	To         string
	CallerName string
}

type StatusForm struct {
	CallSid      string
	CallStatus   string
	CallDuration int
}

type RecordingForm struct {
	CallSid           string
	RecordingURL      string
	RecordingDuration int
}

func ParseIncoming(r *http.Request) (IncomingForm, error) {
	if err := r.ParseForm(); err != nil {
		return IncomingForm{}, err
	}
	return IncomingForm{
		CallSid:    r.PostFormValue("CallSid"),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		CallerName: strings.TrimSpace(r.PostFormValue("CallerName")),
	}, nil
}

func ParseStatus(r *http.Request) (StatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusForm{}, err
	}
	return StatusForm{
		CallSid:      r.PostFormValue("CallSid"),
		CallStatus:   strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallDuration: atoiOrZero(r.PostFormValue("CallDuration")),
	}, nil
}

func ParseRecording(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	return RecordingForm{
		CallSid:           r.PostFormValue("CallSid"),
		RecordingURL:      strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingDuration: atoiOrZero(r.PostFormValue("RecordingDuration")),
	}, nil
}

func normalizePhone(s string) string {
	// The provider sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
