package arr

// QueueRecord is one pending download in an instance's activity queue.
type QueueRecord struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	DownloadID string `json:"downloadId"`
	OutputPath string `json:"outputPath"`
	Status     string `json:"status"`
}

// QueuePage is the paged queue response from /api/v3/queue.
type QueuePage struct {
	Page         int           `json:"page"`
	PageSize     int           `json:"pageSize"`
	TotalRecords int           `json:"totalRecords"`
	Records      []QueueRecord `json:"records"`
}

// CommandResponse is the response to a command submission. A non-empty
// Message indicates the instance rejected or failed the command.
type CommandResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Series is a Sonarr series, reduced to the fields arrhook consumes.
type Series struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ParseResult is the response from Sonarr's release title parser.
type ParseResult struct {
	Title  string  `json:"title"`
	Series *Series `json:"series"`
}

// EpisodeFile is one media file attached to a Sonarr series.
type EpisodeFile struct {
	ID           int64  `json:"id"`
	SeriesID     int64  `json:"seriesId"`
	RelativePath string `json:"relativePath"`
}

// Movie is a Radarr movie, reduced to the fields arrhook consumes.
type Movie struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}
