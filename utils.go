package main

import (
	"fmt"
	"strings"
)

// ShowDryRunItems displays what a real run would publish, first 20 rows.
func ShowDryRunItems(items []CleanSlateItem) {
	fmt.Println("\nDry Run Results - Stock levels that would be published:")
	fmt.Printf("%-30s %-15s %-15s %-15s %-15s\n", "ItemCode", "Baseline", "Delta", "CurrentStock", "TallyBalance")
	fmt.Println(strings.Repeat("-", 95))

	count := 0
	for _, item := range items {
		if count >= 20 { // Show only first 20 records
			fmt.Printf("... and %d more items\n", len(items)-20)
			break
		}
		fmt.Printf("%-30s %-15s %-15s %-15s %-15s\n",
			truncate(item.ItemCode, 30),
			item.PhysicalBaseline.String(),
			item.TallyDelta.String(),
			item.CurrentStock.String(),
			item.TallyBalance.String())
		count++
	}
}

// ShowRunSummary prints the operator-facing outcome of one run.
func ShowRunSummary(result *RunResult) {
	fmt.Println("\n=== Sync Summary ===")
	fmt.Printf("Status:          %s\n", result.Status)
	fmt.Printf("Items processed: %d\n", result.ItemsProcessed)
	fmt.Printf("Duration:        %.1fs\n", result.Duration.Seconds())

	if len(result.Failures) > 0 {
		fmt.Printf("\nFailed companies (%d):\n", len(result.Failures))
		fmt.Printf("%-25s %s\n", "Company", "Error")
		fmt.Println(strings.Repeat("-", 70))
		for _, failure := range result.Failures {
			fmt.Printf("%-25s %v\n", truncate(failure.Company, 25), failure.Err)
		}
	}
	if result.Err != nil {
		fmt.Printf("\nError: %v\n", result.Err)
	}
}

// failureSummary flattens company failures into one audit line.
func failureSummary(failures []CompanyFailure) string {
	parts := make([]string, 0, len(failures))
	for _, failure := range failures {
		parts = append(parts, fmt.Sprintf("%s: %v", failure.Company, failure.Err))
	}
	return strings.Join(parts, "; ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
