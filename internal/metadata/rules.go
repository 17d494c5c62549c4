package metadata

// Field identifies one form-level value of a Submission
type Field int

const (
	FieldIdentifier Field = iota
	FieldAsOf
	FieldExpiresOn
	FieldServiceRequested
	FieldRequester
	FieldRequesterEmail
	FieldPhone
	FieldLab
	FieldBillingAddress
	FieldPIs
	FieldFinancialContacts
	FieldRequestSummary
	FieldForms
	FieldSourceOrganism
	FieldContainsHumanDNA
	FieldGenomeSize
	FieldCoverageNeeded
	FieldFlowCellCount
	FieldAdditionalComments
	FieldWillSubmitDNAFor
	FieldTypeOfSample
	FieldSampleBuffer
	FieldFlowCellType
	FieldBasecalling
	FieldFileFormat
	FieldDataDelivery
)

var fieldNames = map[Field]string{
	FieldIdentifier:         "identifier",
	FieldAsOf:               "as_of",
	FieldExpiresOn:          "expires_on",
	FieldServiceRequested:   "service_requested",
	FieldRequester:          "requester",
	FieldRequesterEmail:     "requester_email",
	FieldPhone:              "phone",
	FieldLab:                "lab",
	FieldBillingAddress:     "billing_address",
	FieldPIs:                "pis",
	FieldFinancialContacts:  "financial_contacts",
	FieldRequestSummary:     "request_summary",
	FieldForms:              "forms_text",
	FieldSourceOrganism:     "source_organism",
	FieldContainsHumanDNA:   "contains_human_dna",
	FieldGenomeSize:         "genome_size",
	FieldCoverageNeeded:     "coverage_needed",
	FieldFlowCellCount:      "flow_cell_count",
	FieldAdditionalComments: "additional_comments",
	FieldWillSubmitDNAFor:   "will_submit_dna_for",
	FieldTypeOfSample:       "type_of_sample",
	FieldSampleBuffer:       "sample_buffer",
	FieldFlowCellType:       "flow_cell_type",
	FieldBasecalling:        "basecalling",
	FieldFileFormat:         "file_format",
	FieldDataDelivery:       "data_delivery",
}

// String returns the snake_case name used in reports and JSON
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

type valueKind int

const (
	kindText valueKind = iota
	kindList
	kindBool
	kindInt
	kindCheckbox
)

// option is one checkbox choice: the canonical value and the strings that
// identify it on the form
type option struct {
	Value   string
	Aliases []string
}

// rule ties a field to the labels that introduce it. Labels are lowercase
// with any trailing colon or question mark removed.
type rule struct {
	Field   Field
	Kind    valueKind
	Labels  []string
	Options []option
}

var rules = []rule{
	{Field: FieldIdentifier, Kind: kindText, Labels: []string{"identifier"}},
	{Field: FieldAsOf, Kind: kindText, Labels: []string{"as of"}},
	{Field: FieldExpiresOn, Kind: kindText, Labels: []string{"expires on"}},
	{Field: FieldServiceRequested, Kind: kindText, Labels: []string{"service requested"}},
	{Field: FieldRequester, Kind: kindText, Labels: []string{"requester"}},
	{Field: FieldRequesterEmail, Kind: kindText, Labels: []string{"e-mail", "email"}},
	{Field: FieldPhone, Kind: kindText, Labels: []string{"phone"}},
	{Field: FieldLab, Kind: kindText, Labels: []string{"lab"}},
	{Field: FieldBillingAddress, Kind: kindText, Labels: []string{"billing address"}},
	{Field: FieldPIs, Kind: kindList, Labels: []string{"pis", "pi(s)", "pi"}},
	{Field: FieldFinancialContacts, Kind: kindList, Labels: []string{"financial contacts", "financial contact"}},
	{Field: FieldRequestSummary, Kind: kindText, Labels: []string{"request summary"}},
	{Field: FieldForms, Kind: kindText, Labels: []string{"forms"}},
	{Field: FieldSourceOrganism, Kind: kindText, Labels: []string{"source organism"}},
	{
		Field:  FieldContainsHumanDNA,
		Kind:   kindBool,
		Labels: []string{"do these samples contain human dna", "contains human dna", "human dna"},
		Options: []option{
			{Value: "yes", Aliases: []string{"Yes"}},
			{Value: "no", Aliases: []string{"No"}},
		},
	},
	{Field: FieldGenomeSize, Kind: kindText, Labels: []string{"genome size", "approximate genome size"}},
	{Field: FieldCoverageNeeded, Kind: kindText, Labels: []string{"coverage needed"}},
	{Field: FieldFlowCellCount, Kind: kindInt, Labels: []string{"number of flow cells"}},
	{
		Field:  FieldAdditionalComments,
		Kind:   kindText,
		Labels: []string{"additional comments", "additional comments / special needs"},
	},
	{
		Field:  FieldWillSubmitDNAFor,
		Kind:   kindCheckbox,
		Labels: []string{"i will be submitting dna for"},
		Options: []option{
			{Value: "Ligation Sequencing (SQK-LSK114)", Aliases: []string{"Ligation Sequencing (SQK-LSK114)", "SQK-LSK114"}},
			{Value: "Ligation Sequencing with Barcoding (SQK-NBD114.96)", Aliases: []string{"Ligation Sequencing with Barcoding (SQK-NBD114.96)", "SQK-NBD114.96"}},
			{Value: "Rapid Sequencing (SQK-RAD114)", Aliases: []string{"Rapid Sequencing (SQK-RAD114)", "SQK-RAD114"}},
			{Value: "Rapid Sequencing with Barcoding (SQK-RBK114.24)", Aliases: []string{"Rapid Sequencing with Barcoding (SQK-RBK114.24)", "SQK-RBK114.24"}},
		},
	},
	{
		Field:  FieldTypeOfSample,
		Kind:   kindCheckbox,
		Labels: []string{"type of sample"},
		Options: []option{
			{Value: "High Molecular Weight DNA / gDNA", Aliases: []string{"High Molecular Weight DNA / gDNA", "High Molecular Weight DNA", "gDNA"}},
			{Value: "Fragmented DNA", Aliases: []string{"Fragmented DNA"}},
			{Value: "PCR Amplicons", Aliases: []string{"PCR Amplicons"}},
			{Value: "cDNA", Aliases: []string{"cDNA"}},
		},
	},
	{
		Field:  FieldSampleBuffer,
		Kind:   kindCheckbox,
		Labels: []string{"sample buffer"},
		Options: []option{
			{Value: "EB", Aliases: []string{"EB"}},
			{Value: "Nuclease-Free Water", Aliases: []string{"Nuclease-Free Water", "Nuclease Free Water"}},
		},
	},
	{
		Field:  FieldFlowCellType,
		Kind:   kindCheckbox,
		Labels: []string{"flow cell selection"},
		Options: []option{
			{Value: "MinION Flow Cell", Aliases: []string{"MinION Flow Cell", "MinION"}},
			{Value: "PromethION Flow Cell", Aliases: []string{"PromethION Flow Cell", "PromethION"}},
		},
	},
	{
		Field:  FieldBasecalling,
		Kind:   kindCheckbox,
		Labels: []string{"basecalled using"},
		Options: []option{
			{Value: "HAC", Aliases: []string{"HAC"}},
			{Value: "SUP", Aliases: []string{"SUP"}},
		},
	},
	{
		Field:  FieldFileFormat,
		Kind:   kindCheckbox,
		Labels: []string{"file format"},
		Options: []option{
			{Value: "FASTQ/BAM", Aliases: []string{"FASTQ/BAM", "FASTQ / BAM"}},
			{Value: "POD5", Aliases: []string{"POD5"}},
		},
	},
	{
		Field:  FieldDataDelivery,
		Kind:   kindCheckbox,
		Labels: []string{"data delivery", "how would you like to retrieve your data"},
		Options: []option{
			{Value: "ITS Research Computing storage", Aliases: []string{"ITS Research Computing storage"}},
			{Value: "URL download", Aliases: []string{"URL download", "URL to download"}},
			{Value: "Pre-arranged", Aliases: []string{"Pre-arranged", "Prearranged"}},
		},
	},
}

// Marks that select the option next to them, and empty boxes that do not
var (
	checkedMarks = []string{"[X]", "[x]", "(X)", "(x)", "☑", "☒", "■", "✓", "✔"}
	emptyBoxes   = []string{"[ ]", "[]", "( )", "()", "☐", "□"}
)
