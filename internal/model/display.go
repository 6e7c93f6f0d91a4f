package model

type Post struct {
	Title    string
	URL      string
	HNPostID int64
}

type ClusterDisplay struct {
	ClusterIdx int32
	Title      string
	Size       int
	Posts      []Post
}
