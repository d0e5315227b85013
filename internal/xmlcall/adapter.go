// Package xmlcall implements the XML tool adapter (base spec §4.9): a
// pure function over completed assistant-content text that recognizes
// models which emit function calls as inline XML instead of the native
// JSON tool-call channel, and normalizes them into canonical ToolCalls.
//
// Grounded directly on original_source/tools/xml_format/parser.py's
// parse_xml_function_call: the same two-pattern structure (an opening
// <function=NAME> tag, followed by zero or more
// <parameter=KEY>VALUE</parameter> fragments) translated to Go's RE2
// regexp package, which both patterns fit without modification.
package xmlcall

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mattwalker75/llf-control-plane/pkg/models"
)

// Sentinel is the literal pattern the chat pipeline scans completed
// assistant-content segments for before handing them to Parse, per base
// spec §4.8's XML adapter hook.
const Sentinel = "<function="

var (
	functionOpen  = regexp.MustCompile(`<function=([^>]+)>`)
	parameterTag  = regexp.MustCompile(`<parameter=([^>]+)>([^<]*)</parameter>`)
	functionClose = regexp.MustCompile(`</function>`)
)

// Parse scans text for one or more <function=NAME> ... <parameter=KEY>VALUE
// </parameter> ... blocks and returns a ToolCall per block, in textual
// order. A missing closing </function> tag on the outermost block is
// tolerated — truncated streams commonly never emit it — by treating the
// next <function=...> open tag, or end of string, as the block boundary.
func Parse(text string) []models.ToolCall {
	opens := functionOpen.FindAllStringSubmatchIndex(text, -1)
	if len(opens) == 0 {
		return nil
	}

	calls := make([]models.ToolCall, 0, len(opens))
	for i, m := range opens {
		name := strings.TrimSpace(text[m[2]:m[3]])
		blockStart := m[1] // end of the opening tag
		blockEnd := len(text)
		if i+1 < len(opens) {
			blockEnd = opens[i+1][0]
		}
		block := text[blockStart:blockEnd]
		if loc := functionClose.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}

		args := map[string]string{}
		for _, pm := range parameterTag.FindAllStringSubmatch(block, -1) {
			key := strings.TrimSpace(pm[1])
			args[key] = pm[2]
		}

		argsJSON, err := json.Marshal(args)
		if err != nil {
			argsJSON = []byte("{}")
		}

		calls = append(calls, models.ToolCall{
			ID:        uuid.NewString(),
			Name:      name,
			Arguments: argsJSON,
		})
	}
	return calls
}

// ContainsCall reports whether text holds at least one XML-style function
// call, the cheap check the chat pipeline uses before paying for a Parse.
func ContainsCall(text string) bool {
	return strings.Contains(text, Sentinel)
}
