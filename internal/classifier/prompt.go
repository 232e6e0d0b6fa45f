package classifier

const promptPrefix = `Decide whether the following project title is related to artificial intelligence, computing, software engineering, front-end or back-end development, deep learning, large models, or machine learning. Answer only 'yes' or 'no'.
Examples:
1. "AI-Powered Data Analytics Platform" → yes
2. "Cloud Computing Infrastructure Upgrade" → yes
3. "Cybersecurity Risk Assessment" → yes
4. "Bridge Construction and Design" → no
5. "Urban Traffic Flow Optimization" → no

Project title: `

// Prompt embeds title in the few-shot classification prompt.
func Prompt(title string) string {
	return promptPrefix + title
}
