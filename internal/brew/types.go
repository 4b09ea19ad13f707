package brew

// Cask is one installed Homebrew cask.
type Cask struct {
	Token   string
	Version string
	Tap     string
}

// brewListOutput mirrors the shape of `brew list --cask --json=v2` output.
type brewListOutput struct {
	Casks []brewCask `json:"casks"`
}

// brewCask is a Homebrew cask in JSON output.
type brewCask struct {
	Token     string `json:"token"`
	FullToken string `json:"full_token"`
	Tap       string `json:"tap"`
	Version   string `json:"version"`
}
