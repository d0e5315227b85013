package xmlcall

import (
	"encoding/json"
	"testing"
)

func TestParseSingleCall(t *testing.T) {
	text := `<function=echo_tool><parameter=text>hi</parameter></function>`
	calls := Parse(text)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Name != "echo_tool" {
		t.Errorf("name = %q", calls[0].Name)
	}
	if calls[0].ID == "" {
		t.Error("expected a generated ID")
	}
	var args map[string]string
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatalf("unmarshal arguments: %v", err)
	}
	if args["text"] != "hi" {
		t.Errorf("arguments = %v", args)
	}
}

func TestParseToleratesTruncatedClose(t *testing.T) {
	text := `<function=echo_tool><parameter=text>hi</parameter>`
	calls := Parse(text)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if calls[0].Name != "echo_tool" {
		t.Errorf("name = %q", calls[0].Name)
	}
}

func TestParseMultipleCallsInOrder(t *testing.T) {
	text := `<function=first><parameter=a>1</parameter></function>` +
		`some text between` +
		`<function=second><parameter=b>2</parameter></function>`
	calls := Parse(text)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[0].Name != "first" || calls[1].Name != "second" {
		t.Errorf("order = %q, %q", calls[0].Name, calls[1].Name)
	}
	if calls[0].ID == calls[1].ID {
		t.Error("expected distinct generated IDs")
	}
}

func TestParseNoFunctionCall(t *testing.T) {
	if calls := Parse("just some plain text"); calls != nil {
		t.Errorf("expected nil, got %v", calls)
	}
}

func TestParseMultipleParameters(t *testing.T) {
	text := `<function=write_file><parameter=path>/tmp/a</parameter><parameter=content>hello</parameter></function>`
	calls := Parse(text)
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	var args map[string]string
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if args["path"] != "/tmp/a" || args["content"] != "hello" {
		t.Errorf("arguments = %v", args)
	}
}

func TestContainsCall(t *testing.T) {
	if ContainsCall("plain text") {
		t.Error("expected no match on plain text")
	}
	if !ContainsCall("prefix <function=foo> suffix") {
		t.Error("expected a match")
	}
}
