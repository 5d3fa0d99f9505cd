package cmd

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat selects how command results are rendered
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatPlain OutputFormat = "plain"
)

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatJSON, FormatTable, FormatPlain:
		return f, nil
	default:
		return "", validationErr("invalid format %q (want json, table or plain)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return serializationErr(err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return ioErr(err)
	}
	return nil
}
