package hub

// RepoFile is one file entry in a repository listing.
type RepoFile struct {
	Rfilename string `json:"rfilename"`
	Size      int64  `json:"size,omitempty"`
}

// RepoInfo describes a repository at one revision.
type RepoInfo struct {
	ID      string `json:"id"`
	SHA     string `json:"sha,omitempty"`
	Private bool   `json:"private"`
	// Gated is false, "auto" or "manual" on the public hub.
	Gated    any        `json:"gated,omitempty"`
	Siblings []RepoFile `json:"siblings"`
}

// Filenames lists the repository's files in listing order.
func (r *RepoInfo) Filenames() []string {
	names := make([]string, 0, len(r.Siblings))
	for _, s := range r.Siblings {
		names = append(names, s.Rfilename)
	}
	return names
}

// createRepoRequest is the create endpoint payload.
type createRepoRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

// deleteRepoRequest is the delete endpoint payload.
type deleteRepoRequest struct {
	Name string `json:"name"`
}
