package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mpinkus/Sss/pkg/ceremony"
)

// OutputFormat defines the output format type.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output for the ceremony commands.
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer.
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	default:
		fmt.Fprintln(p.writer, message)
		return nil
	}
}

// PrintError prints an error message.
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// PrintCeremonyResult prints the outcome of a create or reconstruct
// operation. Neither format includes the reconstructed secret; the
// reconstruct command prints it separately, in text mode only.
func (p *Printer) PrintCeremonyResult(result *ceremony.CeremonyResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"success":     result.Success,
			"message":     result.Message,
			"output_file": result.OutputFile,
		})
	default:
		if result.Success {
			fmt.Fprintf(p.writer, "Success: %s\n", result.Message)
			if result.OutputFile != "" {
				fmt.Fprintf(p.writer, "Output file: %s\n", result.OutputFile)
			}
		} else {
			fmt.Fprintf(p.writer, "Failed: %s\n", result.Message)
		}
		return nil
	}
}

// PrintSessionSummary prints the sealed session output's verification
// fields after FinalizeSession.
func (p *Printer) PrintSessionSummary(sessionID, hash, hmacValue string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"session_id":         sessionID,
			"session_data_hash":  hash,
			"admin_session_hmac": hmacValue,
		})
	default:
		fmt.Fprintf(p.writer, "Session %s sealed.\n", sessionID)
		fmt.Fprintf(p.writer, "SHA-256: %s\n", hash)
		fmt.Fprintf(p.writer, "HMAC-SHA256: %s\n", hmacValue)
		return nil
	}
}

// printJSON prints data as JSON.
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
