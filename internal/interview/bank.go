package interview

import "github.com/pathprep/pathprep/internal/models"

// Static question bank, indexed by role then question difficulty. The bank
// seeds session sequences; when it runs dry the completion service is asked
// to supplement, and generic templates are the last resort.

type bankQuestion struct {
	Text      string
	Type      models.QuestionType
	Topic     string
	KeyPoints []string
}

// typeSequence returns the 8-slot question-type interleaving for a role.
func typeSequence(role string) []models.QuestionType {
	const (
		t  = models.QuestionTechnical
		b  = models.QuestionBehavioral
		sc = models.QuestionScenario
		d  = models.QuestionDSAProblem
		sd = models.QuestionSystemDesign
	)
	switch role {
	case "dsa", "dsa-engineer":
		return []models.QuestionType{d, d, t, d, sd, d, t, b}
	case "frontend-developer", "backend-developer", "fullstack-developer":
		return []models.QuestionType{t, t, sc, t, sd, b, t, sc}
	case "data-scientist", "ml-engineer":
		return []models.QuestionType{t, t, sc, t, t, sd, b, sc}
	case "devops-engineer", "sre":
		return []models.QuestionType{t, sc, t, sd, t, sc, b, t}
	default:
		return []models.QuestionType{t, sc, b, t, sc, b, t, sc}
	}
}

var questionBank = map[string]map[models.Difficulty][]bankQuestion{
	"frontend-developer": {
		models.DifficultyEasy: {
			{"What is the difference between let, const, and var in JavaScript?", models.QuestionTechnical, "javascript", []string{"block scope", "hoisting", "reassignment"}},
			{"Explain what the virtual DOM is and why React uses it.", models.QuestionTechnical, "react", []string{"diffing", "reconciliation", "performance"}},
			{"How would you make a web page responsive across screen sizes?", models.QuestionScenario, "css", []string{"media queries", "flexbox", "relative units"}},
			{"What happens when you type a URL into the browser and press enter?", models.QuestionTechnical, "web fundamentals", []string{"dns", "http", "rendering"}},
			{"Tell me about a frontend project you are proud of and your role in it.", models.QuestionBehavioral, "experience", nil},
			{"How do you keep a page accessible to screen-reader users?", models.QuestionScenario, "accessibility", []string{"semantic html", "aria", "keyboard navigation"}},
		},
		models.DifficultyMedium: {
			{"How does the browser event loop handle promises versus setTimeout callbacks?", models.QuestionTechnical, "javascript", []string{"microtask", "macrotask", "event loop"}},
			{"A page's first contentful paint is slow. Walk me through how you would diagnose and fix it.", models.QuestionScenario, "performance", []string{"profiling", "code splitting", "critical path"}},
			{"Compare state management approaches in a large React application.", models.QuestionTechnical, "react", []string{"context", "redux", "server state"}},
			{"Design the frontend architecture for a dashboard with live-updating widgets.", models.QuestionSystemDesign, "architecture", []string{"websocket", "component boundaries", "caching"}},
			{"Describe a time you disagreed with a designer or product owner and how you resolved it.", models.QuestionBehavioral, "collaboration", nil},
		},
		models.DifficultyHard: {
			{"How would you implement incremental hydration for a server-rendered application?", models.QuestionTechnical, "performance", []string{"hydration", "streaming", "islands"}},
			{"Design a frontend monorepo build pipeline for thirty teams sharing one design system.", models.QuestionSystemDesign, "architecture", []string{"build caching", "versioning", "code ownership"}},
			{"Your bundle grew 40% after a dependency upgrade. How do you find and fix the regression?", models.QuestionScenario, "performance", []string{"bundle analysis", "tree shaking", "source maps"}},
			{"Explain how you would build an undo/redo system for a collaborative editor.", models.QuestionTechnical, "state", []string{"command pattern", "operational transform", "history stack"}},
		},
	},
	"backend-developer": {
		models.DifficultyEasy: {
			{"What is the difference between SQL and NoSQL databases, and when would you pick each?", models.QuestionTechnical, "databases", []string{"schema", "transactions", "scaling"}},
			{"Explain what a REST API is and the meaning of the common HTTP verbs.", models.QuestionTechnical, "api design", []string{"resources", "idempotency", "status codes"}},
			{"How would you store user passwords safely?", models.QuestionScenario, "security", []string{"hashing", "salt", "bcrypt"}},
			{"What is a database index and what trade-off does it carry?", models.QuestionTechnical, "databases", []string{"lookup speed", "write cost", "b-tree"}},
			{"Tell me about a production bug you fixed and what you learned.", models.QuestionBehavioral, "experience", nil},
		},
		models.DifficultyMedium: {
			{"How do you handle a third-party API that fails intermittently?", models.QuestionScenario, "reliability", []string{"retry", "backoff", "circuit breaker"}},
			{"Explain optimistic versus pessimistic locking and where you would use each.", models.QuestionTechnical, "concurrency", []string{"version column", "contention", "deadlock"}},
			{"Design the backend for a URL shortener serving a million redirects a day.", models.QuestionSystemDesign, "system design", []string{"key generation", "caching", "analytics"}},
			{"What changes when a monolith is split into services? Name two problems it introduces.", models.QuestionTechnical, "architecture", []string{"network failure", "distributed transactions", "observability"}},
			{"Describe a time you had to push back on a deadline for technical reasons.", models.QuestionBehavioral, "communication", nil},
		},
		models.DifficultyHard: {
			{"Design an exactly-once payment processing pipeline over an at-least-once queue.", models.QuestionSystemDesign, "distributed systems", []string{"idempotency keys", "outbox pattern", "deduplication"}},
			{"How would you migrate a 2TB production table with zero downtime?", models.QuestionScenario, "databases", []string{"dual writes", "backfill", "cutover"}},
			{"Explain how consensus protocols like Raft keep replicas consistent.", models.QuestionTechnical, "distributed systems", []string{"leader election", "log replication", "quorum"}},
			{"Your p99 latency doubled but p50 is flat. Where do you look?", models.QuestionScenario, "performance", []string{"tail latency", "gc pauses", "connection pools"}},
		},
	},
	"dsa": {
		models.DifficultyEasy: {
			{"Given an array of integers, find two numbers that add up to a target. Talk through your approach.", models.QuestionDSAProblem, "arrays", []string{"hash map", "single pass", "complexity"}},
			{"How would you check if a string is a palindrome, ignoring punctuation?", models.QuestionDSAProblem, "strings", []string{"two pointers", "normalization"}},
			{"Explain the difference between a stack and a queue with a real use for each.", models.QuestionTechnical, "data structures", []string{"lifo", "fifo"}},
			{"Reverse a singly linked list. What is the space complexity of your solution?", models.QuestionDSAProblem, "linked lists", []string{"pointer manipulation", "iterative"}},
			{"Tell me about a time you had to learn a new algorithmic technique quickly.", models.QuestionBehavioral, "learning", nil},
		},
		models.DifficultyMedium: {
			{"Find the k most frequent elements in a stream of numbers.", models.QuestionDSAProblem, "heaps", []string{"min heap", "hash map", "o(n log k)"}},
			{"Detect a cycle in a directed graph and explain your traversal choice.", models.QuestionDSAProblem, "graphs", []string{"dfs", "coloring", "recursion stack"}},
			{"When does quicksort degrade to quadratic time, and how do production sorts avoid it?", models.QuestionTechnical, "sorting", []string{"pivot choice", "introsort"}},
			{"Design a data structure supporting insert, delete, and get-random in O(1).", models.QuestionDSAProblem, "design", []string{"array plus hash map", "swap with last"}},
			{"Design a rate limiter for an API gateway.", models.QuestionSystemDesign, "system design", []string{"token bucket", "sliding window", "distributed state"}},
		},
		models.DifficultyHard: {
			{"Find the median of two sorted arrays in logarithmic time.", models.QuestionDSAProblem, "binary search", []string{"partitioning", "invariants", "o(log min(m,n))"}},
			{"Serialize and deserialize a binary tree; defend your encoding against malformed input.", models.QuestionDSAProblem, "trees", []string{"preorder", "null markers", "validation"}},
			{"Given a stream too large for memory, find the top 100 items by frequency.", models.QuestionDSAProblem, "streaming", []string{"count-min sketch", "heavy hitters", "approximation"}},
			{"Explain amortized analysis using a dynamic array's append operation.", models.QuestionTechnical, "complexity", []string{"doubling", "aggregate method"}},
		},
	},
	"general": {
		models.DifficultyEasy: {
			{"Walk me through how you would debug a feature that works locally but fails in production.", models.QuestionScenario, "debugging", []string{"logs", "environment differences", "reproduction"}},
			{"What does code review mean to you, and what do you look for when reviewing?", models.QuestionTechnical, "practices", []string{"correctness", "readability", "tests"}},
			{"Tell me about a project you built end to end.", models.QuestionBehavioral, "experience", nil},
			{"What is version control for, beyond backing up code?", models.QuestionTechnical, "tooling", []string{"history", "collaboration", "branching"}},
			{"How do you decide what to test in a new feature?", models.QuestionScenario, "testing", []string{"edge cases", "risk", "regression"}},
		},
		models.DifficultyMedium: {
			{"A teammate ships a change that breaks your feature the night before release. What do you do?", models.QuestionScenario, "collaboration", []string{"communication", "rollback", "root cause"}},
			{"Explain eventual consistency to a junior engineer using a concrete product example.", models.QuestionTechnical, "distributed systems", []string{"replication lag", "conflict resolution"}},
			{"Describe the hardest technical decision you have made and how you weighed the options.", models.QuestionBehavioral, "judgment", nil},
			{"How would you add observability to a service that currently only writes text logs?", models.QuestionScenario, "observability", []string{"structured logging", "metrics", "tracing"}},
		},
		models.DifficultyHard: {
			{"Your service must absorb a 10x traffic spike next month. Lay out your plan.", models.QuestionScenario, "scaling", []string{"load testing", "bottlenecks", "capacity"}},
			{"Design a feature-flag system usable by fifty teams without coordination.", models.QuestionSystemDesign, "architecture", []string{"targeting rules", "defaults", "kill switch"}},
			{"Tell me about a time you were wrong about a technical bet and how you corrected course.", models.QuestionBehavioral, "judgment", nil},
		},
	},
}

// bankFor resolves a role to its bank, falling back to the general pool for
// roles without a dedicated entry.
func bankFor(role string) map[models.Difficulty][]bankQuestion {
	if b, ok := questionBank[role]; ok {
		return b
	}
	return questionBank["general"]
}

// genericQuestion is the last-resort filler when both the bank and the
// completion service come up short.
func genericQuestion(role string, level models.ExperienceLevel, qt models.QuestionType) bankQuestion {
	switch qt {
	case models.QuestionBehavioral:
		return bankQuestion{"Tell me about a challenging situation you faced working as a " + role + " and how you handled it.", qt, "experience", nil}
	case models.QuestionScenario:
		return bankQuestion{"Describe how you would approach a production incident affecting the main responsibility of a " + role + ".", qt, "incident response", nil}
	case models.QuestionSystemDesign:
		return bankQuestion{"Sketch the high-level design of a system a " + role + " would typically own, and call out its main trade-offs.", qt, "system design", nil}
	case models.QuestionDSAProblem:
		return bankQuestion{"Pick a data structure you used recently, describe a problem it solved, and analyze the complexity.", qt, "data structures", nil}
	default:
		return bankQuestion{"Explain a core concept every " + string(level) + " " + role + " should understand, as if teaching a new teammate.", qt, "fundamentals", nil}
	}
}
