// Package display formats command output: tables, JSON documents, and
// warning blocks.
//
// Every function writes to an io.Writer so commands can be tested with a
// buffer:
//
//	out := display.NewOutput(cmd.OutOrStdout(), jsonFlag)
//	out.Print([]string{"WORKFLOW", "NEXT RUN"}, rows, entries)
//
//	display.Warning{
//	    Title:      "Configuration file ignored",
//	    Message:    err.Error(),
//	    Suggestion: "Run 'taskflow validate' for details",
//	}.Display(os.Stderr)
package display
