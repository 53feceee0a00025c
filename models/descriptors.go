package models

// Built-in category descriptors for the stats site's team tables. Header
// aliases cover the spellings observed across seasons; selectors come from
// the site's rendered markup and are overridable through configuration where
// the pagination contract differs.

func init() {
	RegisterCategory(&CategoryDescriptor{
		Name:              "boxscore",
		TableSelector:     "table.Crom_table__p1iZz",
		EntityPathSegment: "/game/",
		KeyFields:         []string{KeyEntityID, "team_abb"},
		Fields: []FieldRule{
			{Name: "team_abb", Type: FieldString, Aliases: []string{"Team", "TEAM"}},
			{Name: "match_up", Type: FieldString, Aliases: []string{"Match Up", "MATCH UP", "MATCHUP"}},
			{Name: "game_date", Type: FieldDate, Aliases: []string{"Game Date", "GAME DATE", "GDATE"}},
			{Name: "result", Type: FieldString, Aliases: []string{"W/L", "WL"}},
			{Name: "min", Type: FieldInt, Aliases: []string{"MIN", "Min"}},
			{Name: "pts", Type: FieldInt, Aliases: []string{"PTS"}},
			{Name: "fgm", Type: FieldInt, Aliases: []string{"FGM"}},
			{Name: "fga", Type: FieldInt, Aliases: []string{"FGA"}},
			{Name: "fg_pct", Type: FieldFloat, Aliases: []string{"FG%", "FG PCT"}},
			{Name: "fg3m", Type: FieldInt, Aliases: []string{"3PM", "FG3M"}},
			{Name: "fg3a", Type: FieldInt, Aliases: []string{"3PA", "FG3A"}},
			{Name: "fg3_pct", Type: FieldFloat, Aliases: []string{"3P%", "FG3 PCT"}},
			{Name: "ftm", Type: FieldInt, Aliases: []string{"FTM"}},
			{Name: "fta", Type: FieldInt, Aliases: []string{"FTA"}},
			{Name: "ft_pct", Type: FieldFloat, Aliases: []string{"FT%", "FT PCT"}},
			{Name: "oreb", Type: FieldInt, Aliases: []string{"OREB"}},
			{Name: "dreb", Type: FieldInt, Aliases: []string{"DREB"}},
			{Name: "reb", Type: FieldInt, Aliases: []string{"REB"}},
			{Name: "ast", Type: FieldInt, Aliases: []string{"AST"}},
			{Name: "stl", Type: FieldInt, Aliases: []string{"STL"}},
			{Name: "blk", Type: FieldInt, Aliases: []string{"BLK"}},
			{Name: "tov", Type: FieldInt, Aliases: []string{"TOV", "TO"}},
			{Name: "pf", Type: FieldInt, Aliases: []string{"PF"}},
			{Name: "plus_minus", Type: FieldInt, Aliases: []string{"+/-", "PLUS MINUS"}},
		},
	})

	RegisterCategory(&CategoryDescriptor{
		Name:              "advanced",
		TableSelector:     "table[data-module='AdvancedBoxScore']",
		EntityPathSegment: "/game/",
		KeyFields:         []string{KeyEntityID, "team_abb"},
		Fields: []FieldRule{
			{Name: "team_abb", Type: FieldString, Aliases: []string{"Team", "TEAM"}},
			{Name: "match_up", Type: FieldString, Aliases: []string{"Match Up", "MATCH UP", "MATCHUP"}},
			{Name: "game_date", Type: FieldDate, Aliases: []string{"Game Date", "GAME DATE"}},
			{Name: "min", Type: FieldInt, Aliases: []string{"MIN"}},
			{Name: "off_rtg", Type: FieldFloat, Aliases: []string{"OFFRTG", "OFF RTG"}},
			{Name: "def_rtg", Type: FieldFloat, Aliases: []string{"DEFRTG", "DEF RTG"}},
			{Name: "net_rtg", Type: FieldFloat, Aliases: []string{"NETRTG", "NET RTG"}},
			{Name: "ast_pct", Type: FieldFloat, Aliases: []string{"AST%"}},
			{Name: "ast_to", Type: FieldFloat, Aliases: []string{"AST/TO"}},
			{Name: "ast_ratio", Type: FieldFloat, Aliases: []string{"AST RATIO"}},
			{Name: "oreb_pct", Type: FieldFloat, Aliases: []string{"OREB%"}},
			{Name: "dreb_pct", Type: FieldFloat, Aliases: []string{"DREB%"}},
			{Name: "reb_pct", Type: FieldFloat, Aliases: []string{"REB%"}},
			{Name: "tov_ratio", Type: FieldFloat, Aliases: []string{"TO RATIO", "TOV RATIO"}},
			{Name: "efg_pct", Type: FieldFloat, Aliases: []string{"EFG%"}},
			{Name: "ts_pct", Type: FieldFloat, Aliases: []string{"TS%"}},
			{Name: "pace", Type: FieldFloat, Aliases: []string{"PACE"}},
			{Name: "pie", Type: FieldFloat, Aliases: []string{"PIE"}},
			{Name: "poss", Type: FieldInt, Aliases: []string{"POSS"}},
		},
	})

	RegisterCategory(&CategoryDescriptor{
		Name:              "drives",
		TableSelector:     "table.Crom_table__p1iZz",
		EntityPathSegment: "/game/",
		KeyFields:         []string{KeySeason, KeySeasonType, "team_abb"},
		Fields: []FieldRule{
			{Name: "team_abb", Type: FieldString, Aliases: []string{"Team", "TEAM"}},
			{Name: "gp", Type: FieldInt, Aliases: []string{"GP"}},
			{Name: "min", Type: FieldInt, Aliases: []string{"MIN"}},
			{Name: "drives", Type: FieldFloat, Aliases: []string{"DRIVES"}},
			{Name: "drive_fgm", Type: FieldFloat, Aliases: []string{"FGM"}},
			{Name: "drive_fga", Type: FieldFloat, Aliases: []string{"FGA"}},
			{Name: "drive_fg_pct", Type: FieldFloat, Aliases: []string{"FG%"}},
			{Name: "drive_pts", Type: FieldFloat, Aliases: []string{"PTS"}},
			{Name: "drive_pts_pct", Type: FieldFloat, Aliases: []string{"PTS%"}},
			{Name: "drive_pass", Type: FieldFloat, Aliases: []string{"PASS"}},
			{Name: "drive_pass_pct", Type: FieldFloat, Aliases: []string{"PASS%"}},
			{Name: "drive_ast", Type: FieldFloat, Aliases: []string{"AST"}},
			{Name: "drive_ast_pct", Type: FieldFloat, Aliases: []string{"AST%"}},
			{Name: "drive_tov", Type: FieldFloat, Aliases: []string{"TOV"}},
			{Name: "drive_tov_pct", Type: FieldFloat, Aliases: []string{"TOV%"}},
			{Name: "drive_pf", Type: FieldFloat, Aliases: []string{"PF"}},
			{Name: "drive_pf_pct", Type: FieldFloat, Aliases: []string{"PF%"}},
		},
	})
}
