package telephony

import (
	"bytes"
	"encoding/xml"
)

// Minimal provider markup (TwiML) builder. It intentionally avoids any
// provider SDK dependency; only the verbs the gateway needs exist here.
//
// Every provider-facing handler must answer with valid markup, even on
// internal failure. These builders cannot fail at runtime for that reason:
// encoding fixed structs to XML only errors on marshaler bugs, which the
// render funcs treat as impossible and cover in tests.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	Loop    int      `xml:"loop,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type twimlEnqueue struct {
	XMLName xml.Name `xml:"Enqueue"`
	WaitURL string   `xml:"waitUrl,attr,omitempty"`
	Name    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderEnqueue places the caller into the named queue; the provider fetches
// waitURL for hold behavior while the caller waits.
func RenderEnqueue(queueName, waitURL string) string {
	return render(twimlEnqueue{Name: queueName, WaitURL: waitURL})
}

// RenderWait is the hold-loop response: optional greeting, then hold music
// or a long pause when no music is configured.
func RenderWait(greeting, holdMusicURL string) string {
	var verbs []any
	if greeting != "" {
		verbs = append(verbs, twimlSay{Text: greeting})
	}
	if holdMusicURL != "" {
		verbs = append(verbs, twimlPlay{Loop: 0, URL: holdMusicURL})
	} else {
		verbs = append(verbs, twimlPause{Length: 30})
	}
	return render(verbs...)
}

// RenderReject refuses the call; reason is "busy" or "rejected".
func RenderReject(reason string) string {
	return render(twimlReject{Reason: reason})
}

// RenderHangup ends the call cleanly.
func RenderHangup() string {
	return render(twimlHangup{})
}

func render(verbs ...any) string {
	r := twimlResponse{Verbs: verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		// Fixed struct shapes cannot fail to marshal; fall back to the one
		// response every provider parses.
		return xml.Header + "<Response><Hangup></Hangup></Response>"
	}
	_ = enc.Flush()
	return buf.String()
}
