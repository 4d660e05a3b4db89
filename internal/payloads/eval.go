package payloads

// evalDelayTemplates are sleep payloads for code evaluated by an interpreter (eval and friends).
var evalDelayTemplates = []DelayTemplate{
	{Template: "sleep(%d);", Platform: "php", Description: "PHP sleep()"},
	{Template: "usleep(%d);", Scale: 1000000, Platform: "php", Description: "PHP usleep() in microseconds"},
	{Template: "__import__('time').sleep(%d)", Platform: "python", Description: "Python time.sleep()"},
	{Template: "sleep(%d)", Platform: "ruby", Description: "Ruby Kernel#sleep"},
	{Template: "var t=Date.now();while(Date.now()-t<%d);", Scale: 1000, Platform: "node", Description: "JavaScript busy wait in milliseconds"},
	{Template: "Thread.sleep(%d);", Scale: 1000, Platform: "java", Description: "Java Thread.sleep() in milliseconds"},
	{Template: "select(undef,undef,undef,%d);", Platform: "perl", Description: "Perl four-argument select"},
}

// EvalDelays returns the code evaluation delay provider.
func EvalDelays() DelayProvider {
	return templateProvider{
		name:      "eval",
		templates: evalDelayTemplates,
		aliases: map[string][]string{
			"nodejs":     {"node"},
			"javascript": {"node"},
			"express":    {"node"},
			"jsp":        {"java"},
			"django":     {"python"},
			"flask":      {"python"},
			"rails":      {"ruby"},
			"laravel":    {"php"},
		},
	}
}
