package service

import "github.com/arturoeanton/stackmemory/internal/domain"

// taskProfile is the retrieval and prompting profile of a task.
type taskProfile struct {
	Patterns    []string
	System      string
	Instruction string
}

var taskProfiles = map[domain.TaskType]taskProfile{
	domain.TaskChat: {
		Patterns: []string{"%readme%", "%package.json", "%go.mod", "%config%"},
		System: `You are StackMemory, an assistant that answers questions about one software project.
Answer using the provided project context. Be precise, reference specific files and functions,
and cite the source file whenever you refer to code. If the context does not contain the answer, say so.`,
	},
	domain.TaskInsight: {
		Patterns: []string{"%.md", "%package.json", "%go.mod", "%requirements.txt", "%config%", "%schema%", "%dockerfile%"},
		System: `You are an expert software architect reviewing a project from its file tree and key files.
Be specific about the actual files and packages found, not generic.`,
		Instruction: `Assess this project. Reply with a single JSON object and nothing else:
{"summary": "<markdown overview>", "score": <0-10>, "strengths": ["..."], "risks": ["..."], "recommendations": ["..."]}`,
	},
	domain.TaskOnboarding: {
		Patterns: []string{"%readme%", "%contributing%", "%package.json", "%go.mod", "%makefile", "%.env.example", "%docker-compose%"},
		System: `You are a senior engineer onboarding a new contributor to this project.
Use only what the provided context shows about setup, tooling and conventions.`,
		Instruction: `Write an onboarding guide. Reply with a single JSON object and nothing else:
{"overview": "<markdown>", "setup": ["step", "..."], "key_files": ["path", "..."], "first_tasks": ["..."]}`,
	},
	domain.TaskTour: {
		Patterns: []string{"%readme%", "%main.%", "%index.%", "%app.%", "%routes%", "%schema%"},
		System: `You are guiding a developer through the codebase, from entry points to core logic.
Only reference files that appear in the file tree.`,
		Instruction: `Produce a guided tour of 3 to 8 stops. Reply with a single JSON array and nothing else:
[{"file_path": "<path from the tree>", "title": "...", "explanation": "<markdown>"}]`,
	},
}

// profileFor returns the profile of a task.
func profileFor(task domain.TaskType) (taskProfile, bool) {
	p, ok := taskProfiles[task]
	return p, ok
}

// CriticalPatterns returns the default critical-file patterns of a task.
func CriticalPatterns(task domain.TaskType) []string {
	p, ok := profileFor(task)
	if !ok {
		return nil
	}
	return append([]string(nil), p.Patterns...)
}
