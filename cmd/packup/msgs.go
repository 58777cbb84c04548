package packup

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort      = "Update a Minecraft modpack installation from Curse"
	MsgVersionShort   = "Print version information"
	MsgGenconfigShort = "Print a commented default configuration file"
	MsgGenconfigLong  = "Genconfig prints the default configuration with every value commented out, suitable for seeding a packup.toml in the installation directory."

	// Flag descriptions
	MsgFlagDest       = "the path of the minecraft installation"
	MsgFlagJobs       = "the maximum concurrent mod downloads"
	MsgFlagKeepLoader = "prevent the mod loader from being updated"
	MsgFlagKeepConfig = "prevent existing mod configuration files from being updated"
	MsgFlagSymlink    = "attempt to create a symlink LINK to the loader jar file when updating"
	MsgFlagExclude    = "a file containing a glob pattern per line matching mod files not to be installed"
	MsgFlagVerbose    = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"

	// Status messages
	MsgInstallDone = "Modpack %s (version %s) successfully installed"
	MsgRunSummary  = "%d mods installed, %d excluded"

	// Long description
	MsgRootLong = `packup installs or updates a modpack installation from a pack archive.

It downloads every mod the pack manifest names, stages them into the
installation directory while preserving user customizations, and
optionally reinstalls the mod loader.`
)
