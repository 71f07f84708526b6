package pgconf

// fileHeader is the provenance comment every generated file starts
// with. It carries no timestamp so regeneration of unchanged settings
// stays byte-identical.
const fileHeader = "# Managed by pgtend. Manual changes will be overwritten.\n" +
	"# Edit the cluster settings and re-apply instead.\n\n"
