package jsonutil

import (
	"encoding/json"
	"testing"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{name: "string value", input: json.RawMessage(`"Nutella"`), want: "Nutella"},
		{name: "integer value", input: json.RawMessage(`4`), want: "4"},
		{name: "float value", input: json.RawMessage(`3.14`), want: "3.14"},
		{name: "boolean true", input: json.RawMessage(`true`), want: "true"},
		{name: "null value", input: json.RawMessage(`null`), want: ""},
		{name: "nil raw message", input: nil, want: ""},
		{name: "array falls back to raw string", input: json.RawMessage(`[1,2]`), want: `[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlexibleStringValue(tt.input)
			if got != tt.want {
				t.Errorf("FlexibleStringValue(%s) = %q, want %q", string(tt.input), got, tt.want)
			}
		})
	}
}

func TestFlexibleFloatValue(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   float64
		wantOK bool
	}{
		{name: "number", input: json.RawMessage(`12.5`), want: 12.5, wantOK: true},
		{name: "numeric string", input: json.RawMessage(`"7"`), want: 7, wantOK: true},
		{name: "comma decimal string", input: json.RawMessage(`"0,8"`), want: 0.8, wantOK: true},
		{name: "empty string", input: json.RawMessage(`""`), want: 0, wantOK: false},
		{name: "word", input: json.RawMessage(`"traces"`), want: 0, wantOK: false},
		{name: "null", input: json.RawMessage(`null`), want: 0, wantOK: false},
		{name: "absent", input: nil, want: 0, wantOK: false},
		{name: "object", input: json.RawMessage(`{"a":1}`), want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleFloatValue(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FlexibleFloatValue(%s) = (%v, %v), want (%v, %v)", string(tt.input), got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFlexibleIntValue(t *testing.T) {
	tests := []struct {
		name   string
		input  json.RawMessage
		want   int
		wantOK bool
	}{
		{name: "int", input: json.RawMessage(`3`), want: 3, wantOK: true},
		{name: "string int", input: json.RawMessage(`"4"`), want: 4, wantOK: true},
		{name: "fraction truncated", input: json.RawMessage(`2.9`), want: 2, wantOK: true},
		{name: "garbage", input: json.RawMessage(`"unknown"`), want: 0, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleIntValue(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FlexibleIntValue(%s) = (%v, %v), want (%v, %v)", string(tt.input), got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
