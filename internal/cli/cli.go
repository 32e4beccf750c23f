package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Login       *LoginCommand
	Register    *RegisterCommand
	Logout      *LogoutCommand
	Whoami      *WhoamiCommand
	Profile     *ProfileCommand
	Status      *StatusCommand
	Domains     *DomainsCommand
	Scrape      *ScrapeCommand
	Jobs        *JobsCommand
	Job         *JobCommand
	Watch       *WatchCommand
	Optimize    *OptimizeCommand
	Compare     *CompareCommand
	Download    *DownloadCommand
	Analyze     *AnalyzeCommand
	Brand       *BrandCommand
	Competition *CompetitionCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "llmredi"
	parser.LongDescription = "Audit websites for LLM readiness, follow scrape and optimize jobs, and compare reports."

	cmds := &commands{
		Login:       &LoginCommand{globals: &globals, version: version},
		Register:    &RegisterCommand{globals: &globals, version: version},
		Logout:      &LogoutCommand{globals: &globals, version: version},
		Whoami:      &WhoamiCommand{globals: &globals, version: version},
		Profile:     &ProfileCommand{globals: &globals, version: version},
		Status:      &StatusCommand{globals: &globals, version: version},
		Domains:     &DomainsCommand{globals: &globals, version: version},
		Scrape:      &ScrapeCommand{globals: &globals, version: version},
		Jobs:        &JobsCommand{globals: &globals, version: version},
		Job:         &JobCommand{globals: &globals, version: version},
		Watch:       &WatchCommand{globals: &globals, version: version},
		Optimize:    &OptimizeCommand{globals: &globals, version: version},
		Compare:     &CompareCommand{globals: &globals, version: version},
		Download:    &DownloadCommand{globals: &globals, version: version},
		Analyze:     &AnalyzeCommand{globals: &globals, version: version},
		Brand:       &BrandCommand{globals: &globals, version: version},
		Competition: &CompetitionCommand{globals: &globals, version: version},
	}

	parser.AddCommand("login", "Log in", "Authenticate with email and password and store the session locally.", cmds.Login)
	parser.AddCommand("register", "Create an account", "Create an account. The session is stored when the server returns a token.", cmds.Register)
	parser.AddCommand("logout", "Log out", "End the session and remove the stored credentials.", cmds.Logout)
	parser.AddCommand("whoami", "Show the logged-in user", "Validate the stored session with the server and print the user.", cmds.Whoami)
	parser.AddCommand("profile", "Show or edit the profile", "Print the stored profile. With --name, --email or --company, update those fields locally.", cmds.Profile)
	parser.AddCommand("status", "Show server and session status", "Show server health, the local session and the storage location.", cmds.Status)
	parser.AddCommand("domains", "List known domains", "List the domains the server has audited for this account.", cmds.Domains)
	parser.AddCommand("scrape", "Start an audit", "Start a scrape and audit of a domain. With --wait, follow the job to completion.", cmds.Scrape)
	parser.AddCommand("jobs", "List jobs", "List scrape/audit jobs, optionally filtered by status.", cmds.Jobs)
	parser.AddCommand("job", "Show a job", "Show one job's status and stats, or its current report with --report.", cmds.Job)
	parser.AddCommand("watch", "Follow unsettled jobs", "Load jobs and poll every unsettled one until it settles or the command is interrupted.", cmds.Watch)
	parser.AddCommand("optimize", "Optimize a job", "Ask the server to generate an optimized report for a job.", cmds.Optimize)
	parser.AddCommand("compare", "Compare reports", "Compare a job's current report with its optimized report.", cmds.Compare)
	parser.AddCommand("download", "Download a job artifact", "Download the files produced by a job.", cmds.Download)
	parser.AddCommand("analyze", "LLM readiness analysis", "Run a multi-agent LLM readiness analysis of a domain, or list previous ones.", cmds.Analyze)
	parser.AddCommand("brand", "Brand knowledge analysis", "Check how accurately LLMs know a brand, or list previous checks.", cmds.Brand)
	parser.AddCommand("competition", "Competition analysis", "Compare a brand's LLM visibility with its competitors.", cmds.Competition)

	return parser, &globals, cmds
}

// Run is the main entry point for the llmredi CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("llmredi %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
