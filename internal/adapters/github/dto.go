package github

// User is the subset of GET /users/{username} devrank reads.
type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Followers   int64  `json:"followers"`
	PublicRepos int64  `json:"public_repos"`
}

// Owner is a repository owner.
type Owner struct {
	Login string `json:"login"`
}

// Repo is one entry of GET /users/{username}/repos.
type Repo struct {
	Name            string `json:"name"`
	Owner           Owner  `json:"owner"`
	Fork            bool   `json:"fork"`
	StargazersCount int64  `json:"stargazers_count"`
	ForksCount      int64  `json:"forks_count"`
	// Size is in kilobytes.
	Size int64 `json:"size"`
}

// Pull is one pull request.
type Pull struct {
	Number int `json:"number"`
}

// Issue is one issue; GitHub also lists pull requests here with PullRequest set.
type Issue struct {
	Number      int       `json:"number"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

type review struct {
	ID int64 `json:"id"`
}

type commit struct {
	SHA string `json:"sha"`
}

type contributor struct {
	Login string `json:"login"`
}
