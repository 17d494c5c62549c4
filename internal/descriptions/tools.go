package descriptions

import "sort"

// Tool descriptions with practical examples and workflows

const (
	SubmissionImportDescription = `Import a sequencing request PDF into a stored submission with its samples.

**When to use:** A new request form arrives, or a stored one must be re-parsed after the parser improved.

**Why it's useful:** Reads the form fields (requester, lab, PIs, organism, flow cells, delivery options) and every sample table in one pass, keyed by the file content so the same bytes are never imported twice.

**Examples:**
• New request: "Import /requests/HTSF-JL-147.pdf"
• Same file under another name: returns the existing submission with status already_exists
• Parser fix: "Import request.pdf with reprocess=true" keeps the submission id and replaces its samples

**Common workflows:**
1. Intake: submission_import → submission_qc → submission_export
2. Correction: submission_import (reprocess) → sample_update for values the form got wrong

**Best practices:** Check the degraded count in the response; each listed field held a value that could not be read as a number.`

	SubmissionGetDescription = `Show one submission with its form fields, samples and sample statistics as JSON.

**When to use:** Review what was read from a request before running QC or exporting.

**Examples:**
• "Show submission 3f2a…"
• "Which samples did the last import find?"

**Best practices:** Use submission_list first when the id is unknown.`

	SubmissionListDescription = `List stored submissions, newest first.

**When to use:** Find a submission id, or see what was imported recently.

**Examples:**
• "List the last 10 submissions"
• "What requests came in from Smith Lab?" → list, then submission_get

**Best practices:** Pass limit to keep the output short; 0 lists everything.`

	SubmissionExportDescription = `Export a submission as JSON (submission, samples, statistics) or its samples as CSV.

**When to use:** Hand sample sheets to the lab, a LIMS or a spreadsheet.

**Examples:**
• "Export submission 3f2a… as csv"
• "Give me the JSON for the submission I just imported"

**Best practices:** CSV has one row per sample; unknown table columns are appended after the standard ones.`

	SubmissionQCDescription = `Evaluate every sample of a submission against concentration, volume and A260/A280 thresholds and store the results.

**When to use:** After import, to flag samples that need attention before sequencing.

**Examples:**
• "Run QC on submission 3f2a… as jdoe"
• "Run QC with a 5 ng/uL minimum concentration"

**Thresholds:** defaults are 10 ng/uL, 20 uL and a 1.8 ratio. No issue passes, one issue warns, two or more fail.`

	SubmissionDeleteDescription = `Delete a submission and all of its samples.

**When to use:** A request was imported by mistake. The same file can be imported again afterwards.

**Best practices:** Export first if the data may be needed later.`

	SampleUpdateDescription = `Correct one sample by hand: name, measurements or workflow status.

**When to use:** The form had a typo or a value the parser could not read.

**Examples:**
• "Set the volume of sample 9c1d… to 25"
• "Mark sample 9c1d… as sequenced"

**Best practices:** A forced reprocess of the submission replaces manual edits; the import logs a warning when it does.`

	ServerInfoDescription = `Show server status, the database in use, stored submission count and the available tools.

**When to use:** First call in a session, or when unsure which tool fits.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"submission_import": SubmissionImportDescription,
	"submission_get":    SubmissionGetDescription,
	"submission_list":   SubmissionListDescription,
	"submission_export": SubmissionExportDescription,
	"submission_qc":     SubmissionQCDescription,
	"submission_delete": SubmissionDeleteDescription,
	"sample_update":     SampleUpdateDescription,
	"server_info":       ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns all tool names, sorted
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
