package handler

type PostResponse struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	HNPostID int64  `json:"hn_post_id"`
	HNURL    string `json:"hn_url"`
}

type ClusterResponse struct {
	ClusterIdx int32          `json:"cluster_idx"`
	Title      string         `json:"title"`
	Size       int            `json:"size"`
	Posts      []PostResponse `json:"posts"`
}

type ClustersResponse struct {
	Clusters []ClusterResponse `json:"clusters"`
}

type ClusterPostsResponse struct {
	ClusterIdx int32          `json:"cluster_idx"`
	Posts      []PostResponse `json:"posts"`
	Limit      int            `json:"limit"`
}
