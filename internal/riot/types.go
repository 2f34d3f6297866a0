package riot

// Riot account-v1, league-v4 and match-v5 response shapes, trimmed to the
// fields the pipeline reads.

type AccountResponse struct {
	Puuid    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type LeagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

type MatchInfo struct {
	GameCreation int64  `json:"gameCreation"` // ms since epoch
	GameDuration int64  `json:"gameDuration"` // seconds
	GameMode     string `json:"gameMode"`
	QueueID      int    `json:"queueId"`

	Participants []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	Puuid                       string `json:"puuid"`
	RiotIDGameName              string `json:"riotIdGameName"`
	RiotIDTagline               string `json:"riotIdTagline"`
	ChampionName                string `json:"championName"`
	Kills                       int    `json:"kills"`
	Deaths                      int    `json:"deaths"`
	Assists                     int    `json:"assists"`
	TotalDamageDealtToChampions int    `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            int    `json:"totalDamageTaken"`
	GoldEarned                  int    `json:"goldEarned"`
	VisionScore                 int    `json:"visionScore"`
	Win                         bool   `json:"win"`
	TeamID                      int    `json:"teamId"`
}
