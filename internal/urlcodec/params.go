package urlcodec

import (
	"net/url"
	"strings"
)

type param struct {
	key      string // decoded
	rawKey   string
	rawValue string
	hasValue bool
}

// Params is an order-preserving query string. Parameters the codec does not
// own are kept byte-for-byte, in place.
type Params struct {
	pairs []param
}

// ParseParams splits a raw query string (without the leading '?').
func ParseParams(rawQuery string) Params {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	var p Params
	for _, segment := range strings.Split(rawQuery, "&") {
		if segment == "" {
			continue
		}
		rawKey, rawValue, hasValue := strings.Cut(segment, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			key = rawKey
		}
		p.pairs = append(p.pairs, param{key: key, rawKey: rawKey, rawValue: rawValue, hasValue: hasValue})
	}
	return p
}

// Get returns the raw (still encoded) value of the first occurrence of key.
func (p Params) Get(key string) (string, bool) {
	for _, pr := range p.pairs {
		if pr.key == key {
			return pr.rawValue, true
		}
	}
	return "", false
}

// Keys returns the decoded keys in order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p.pairs))
	for _, pr := range p.pairs {
		keys = append(keys, pr.key)
	}
	return keys
}

// Set writes an already-encoded value. An existing key keeps its position and
// later duplicates are dropped; a new key is appended.
func (p *Params) Set(key, rawValue string) {
	out := p.pairs[:0:0]
	written := false
	for _, pr := range p.pairs {
		if pr.key != key {
			out = append(out, pr)
			continue
		}
		if written {
			continue
		}
		pr.rawValue, pr.hasValue = rawValue, true
		out = append(out, pr)
		written = true
	}
	if !written {
		out = append(out, param{key: key, rawKey: url.QueryEscape(key), rawValue: rawValue, hasValue: true})
	}
	p.pairs = out
}

// Del removes every occurrence of key.
func (p *Params) Del(key string) {
	p.DelFunc(func(k string) bool { return k == key })
}

// DelFunc removes every parameter whose decoded key matches.
func (p *Params) DelFunc(match func(key string) bool) {
	out := p.pairs[:0:0]
	for _, pr := range p.pairs {
		if !match(pr.key) {
			out = append(out, pr)
		}
	}
	p.pairs = out
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	return Params{pairs: append([]param(nil), p.pairs...)}
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.pairs) }

// String renders the query string without the leading '?'.
func (p Params) String() string {
	var b strings.Builder
	for i, pr := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pr.rawKey)
		if pr.hasValue {
			b.WriteByte('=')
			b.WriteString(pr.rawValue)
		}
	}
	return b.String()
}
