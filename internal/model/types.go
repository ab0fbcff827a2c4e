package model

import (
	"bytes"
	"encoding/json"
)

// Report categories, in output order.
const (
	KeyWhois        = "WHOIS Information"
	KeyARIN         = "ARIN Information"
	KeyCertificates = "Certificates"
)

// LookupResult is either a pass-through payload from an upstream source or the
// message describing why the lookup failed.
type LookupResult struct {
	Value interface{}
	Err   string
}

func Success(v interface{}) LookupResult {
	return LookupResult{Value: v}
}

func Failure(msg string) LookupResult {
	return LookupResult{Err: msg}
}

func (r LookupResult) Failed() bool {
	return r.Err != ""
}

// Data returns what the result serializes as: the error message on failure,
// the payload otherwise.
func (r LookupResult) Data() interface{} {
	if r.Failed() {
		return r.Err
	}
	return r.Value
}

func (r LookupResult) MarshalJSON() ([]byte, error) {
	return Marshal(r.Data())
}

// Marshal is json.Marshal without HTML escaping, so WHOIS footers such as
// ">>> Last update <<<" and addresses with "&" stay readable.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Entry is one key/value pair of a Report.
type Entry struct {
	Key    string
	Result LookupResult
}

// Report is the merged outcome of one collection run. It always carries the
// three categories, in a fixed order.
type Report struct {
	Whois        LookupResult
	ARIN         LookupResult
	Certificates LookupResult
}

func (r Report) Entries() []Entry {
	return []Entry{
		{Key: KeyWhois, Result: r.Whois},
		{Key: KeyARIN, Result: r.ARIN},
		{Key: KeyCertificates, Result: r.Certificates},
	}
}

// MarshalJSON keeps the category order; a plain map would sort the keys.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := Marshal(e.Result)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Result    string `json:"result"`
}

// HistoryDiff pairs an archived report with the change against the run
// before it. Diff is empty for the oldest entry.
type HistoryDiff struct {
	Entry HistoryEntry `json:"entry"`
	Diff  string       `json:"diff,omitempty"`
}
