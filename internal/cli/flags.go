package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Log debug output to stderr"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// LoginCommand — authenticate and store the session.
type LoginCommand struct {
	Email    string `long:"email" description:"Account email (required)"`
	Password string `long:"password" description:"Account password (required)"`

	globals *GlobalFlags
	version string
}

// RegisterCommand — create an account.
type RegisterCommand struct {
	Email    string `long:"email" description:"Account email (required)"`
	Password string `long:"password" description:"Account password (required)"`
	Username string `long:"username" description:"Display name (required)"`
	Company  string `long:"company" description:"Company name"`

	globals *GlobalFlags
	version string
}

// LogoutCommand — end the stored session.
type LogoutCommand struct {
	globals *GlobalFlags
	version string
}

// WhoamiCommand — validate the stored session and print the user.
type WhoamiCommand struct {
	globals *GlobalFlags
	version string
}

// ProfileCommand — print the stored profile, or change fields of it.
type ProfileCommand struct {
	Name    *string `long:"name" description:"Display name"`
	Email   *string `long:"email" description:"Contact email"`
	Company *string `long:"company" description:"Company name"`

	globals *GlobalFlags
	version string
}

// StatusCommand — backend health plus local session and storage summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// DomainsCommand — list domains known to the backend.
type DomainsCommand struct {
	globals *GlobalFlags
	version string
}

// ScrapeCommand — start a scrape/audit job for a domain.
type ScrapeCommand struct {
	NoHeadless bool `long:"no-headless" description:"Ask the backend for a non-headless browser"`
	Wait       bool `long:"wait" description:"Follow the job until it completes or fails"`

	globals *GlobalFlags
	version string
}

// JobsCommand — list jobs.
type JobsCommand struct {
	Status string `long:"status" description:"Only jobs with this status (pending, processing, running, completed, failed)"`
	Limit  int    `long:"limit" description:"Maximum jobs to list" default:"0"`

	globals *GlobalFlags
	version string
}

// JobCommand — show one job.
type JobCommand struct {
	Report bool `long:"report" description:"Print the job's current report"`
	Wait   bool `long:"wait" description:"Poll until the job completes or fails"`

	globals *GlobalFlags
	version string
}

// WatchCommand — poll every unsettled job until they all settle.
type WatchCommand struct {
	Limit       int    `long:"limit" description:"Maximum jobs to load" default:"0"`
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address (e.g., :9090)"`

	globals *GlobalFlags
	version string
}

// OptimizeCommand — generate an optimized report for a job.
type OptimizeCommand struct {
	Wait bool `long:"wait" description:"Poll until the optimized report is available"`

	globals *GlobalFlags
	version string
}

// CompareCommand — compare a job's current and optimized reports.
type CompareCommand struct {
	globals *GlobalFlags
	version string
}

// DownloadCommand — save a job's artifact to disk.
type DownloadCommand struct {
	Output string `long:"output" short:"o" description:"Destination file (default: <job id>.zip)"`

	globals *GlobalFlags
	version string
}

// AnalyzeCommand — run or list LLM readiness analyses.
type AnalyzeCommand struct {
	History bool `long:"history" description:"List previous analyses instead of running one"`

	globals *GlobalFlags
	version string
}

// BrandCommand — run or list brand knowledge analyses.
type BrandCommand struct {
	Domain  string `long:"domain" description:"Brand website"`
	Brand   string `long:"brand" description:"Brand name"`
	History bool   `long:"history" description:"List previous brand analyses"`

	globals *GlobalFlags
	version string
}

// CompetitionCommand — run, recall or list competition analyses.
type CompetitionCommand struct {
	Domain  string `long:"domain" description:"Brand website"`
	Brand   string `long:"brand" description:"Brand name"`
	Latest  bool   `long:"latest" description:"Show the last competition analysis saved locally"`
	History bool   `long:"history" description:"List previous competition analyses"`

	globals *GlobalFlags
	version string
}
