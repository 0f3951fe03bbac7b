package github

import (
	"sort"
	"time"

	gh "github.com/google/go-github/v62/github"
)

const (
	topReposLimit     = 6
	topLanguagesLimit = 8
)

type UserInfo struct {
	Login       string    `json:"login"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Bio         string    `json:"bio"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Email       string    `json:"email"`
	Blog        string    `json:"blog"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	PublicRepos int       `json:"publicRepos"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RepoSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	Language    string    `json:"language"`
	URL         string    `json:"url"`
	UpdatedAt   time.Time `json:"updatedAt"`
	IsPrivate   bool      `json:"isPrivate"`
}

type LanguageCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Profile struct {
	Profile   UserInfo        `json:"profile"`
	Repos     []RepoSummary   `json:"repos"`
	Languages []LanguageCount `json:"languages"`
}

// BuildProfile keeps the most starred repositories and the most used languages.
func BuildProfile(u *gh.User, repos []*gh.Repository) Profile {
	p := Profile{
		Profile: UserInfo{
			Login:       u.GetLogin(),
			Name:        u.GetName(),
			Avatar:      u.GetAvatarURL(),
			Bio:         u.GetBio(),
			Company:     u.GetCompany(),
			Location:    u.GetLocation(),
			Email:       u.GetEmail(),
			Blog:        u.GetBlog(),
			Followers:   u.GetFollowers(),
			Following:   u.GetFollowing(),
			PublicRepos: u.GetPublicRepos(),
			CreatedAt:   u.GetCreatedAt().Time,
		},
		Repos:     []RepoSummary{},
		Languages: []LanguageCount{},
	}

	sorted := make([]*gh.Repository, len(repos))
	copy(sorted, repos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GetStargazersCount() > sorted[j].GetStargazersCount()
	})
	for i, r := range sorted {
		if i == topReposLimit {
			break
		}
		p.Repos = append(p.Repos, RepoSummary{
			Name:        r.GetName(),
			Description: r.GetDescription(),
			Stars:       r.GetStargazersCount(),
			Forks:       r.GetForksCount(),
			Language:    r.GetLanguage(),
			URL:         r.GetHTMLURL(),
			UpdatedAt:   r.GetUpdatedAt().Time,
			IsPrivate:   r.GetPrivate(),
		})
	}

	counts := make(map[string]int)
	for _, r := range repos {
		if lang := r.GetLanguage(); lang != "" {
			counts[lang]++
		}
	}
	for name, n := range counts {
		p.Languages = append(p.Languages, LanguageCount{Name: name, Count: n})
	}
	sort.Slice(p.Languages, func(i, j int) bool {
		if p.Languages[i].Count != p.Languages[j].Count {
			return p.Languages[i].Count > p.Languages[j].Count
		}
		return p.Languages[i].Name < p.Languages[j].Name
	})
	if len(p.Languages) > topLanguagesLimit {
		p.Languages = p.Languages[:topLanguagesLimit]
	}
	return p
}
