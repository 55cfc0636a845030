// Package ui renders the gemd command line output.
//
// Commands print a header box describing what they are about to do and a
// result box when they finish. Lipgloss does the styling; when stdout is not
// a terminal the same boxes are printed without colour.
//
// The discover command runs its mDNS scan inside a small Bubble Tea program
// that shows a spinner until the scan completes:
//
//	capsules, err := ui.RunScan(ctx, ui.ScanLabel(discovery.ServiceType, timeout),
//	    scanner.ScanForCapsules, os.Stdout)
//
// Logging stays silent unless GEMD_LOG_LEVEL is set, so zap output does not
// interleave with the boxes.
package ui
