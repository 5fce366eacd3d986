package bot

import "strings"

// CommandKind identifies a parsed slash-command.
type CommandKind int

const (
	// Admin-only commands. For everyone else /ai subcommands degrade to an
	// AI chat prompt and the rest are ignored as ordinary chat.
	CmdAIOn CommandKind = iota
	CmdAIOff
	CmdAIManageOn
	CmdAIManageOff
	CmdAIModelShow
	CmdAIModelSet
	CmdAIModels
	CmdHangOn
	CmdHangOff
	CmdHelp
	CmdKick
	CmdBan
	CmdUnban

	// Open to all users.
	CmdAIChat
	CmdPlay
	CmdNetMusic
	CmdQQMusic
	CmdTTS
	CmdNext
	CmdPlaylist
	CmdClear
	CmdMusicAdd
	CmdMusicList
	CmdMusicPlay
	CmdJoke
	CmdTranslate
)

// Command is a parsed slash-command. Arg holds a single-token argument
// (model name, play title), Rest holds free text after the command words
// (chat prompt, search query, kick target). For /ai subcommands Rest always
// carries the full text after "/ai" so a non-admin sender's "/ai on" can be
// rerouted to chat.
type Command struct {
	Kind CommandKind
	Arg  string
	Rest string
}

// ParseCommand interprets text as a slash-command. ok is false when the text
// is not a command at all, or is a recognized prefix in a malformed shape
// that never produced a reply (bare "/hang", unknown "/music" subcommand);
// such messages pass through as ordinary chat.
//
// Matching is on whole tokens, so "/playlist" is never mistaken for "/play"
// with a stray argument.
func ParseCommand(text string) (cmd Command, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, false
	}
	head := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(text, head))

	switch head {
	case "/ai":
		return parseAI(fields, rest), true
	case "/hang":
		if len(fields) >= 2 {
			switch fields[1] {
			case "on":
				return Command{Kind: CmdHangOn}, true
			case "off":
				return Command{Kind: CmdHangOff}, true
			}
		}
		return Command{}, false
	case "/help":
		return Command{Kind: CmdHelp}, true
	case "/joke":
		return Command{Kind: CmdJoke}, true
	case "/kick":
		return Command{Kind: CmdKick, Rest: rest}, true
	case "/ban":
		return Command{Kind: CmdBan, Rest: rest}, true
	case "/unban":
		return Command{Kind: CmdUnban, Rest: rest}, true
	case "/play":
		// First token is the title, the remainder is the URL.
		if len(fields) >= 3 {
			return Command{Kind: CmdPlay, Arg: fields[1], Rest: strings.Join(fields[2:], " ")}, true
		}
		return Command{Kind: CmdPlay}, true
	case "/netmusic":
		return Command{Kind: CmdNetMusic, Rest: rest}, true
	case "/qqmusic":
		return Command{Kind: CmdQQMusic, Rest: rest}, true
	case "/tts":
		return Command{Kind: CmdTTS, Rest: rest}, true
	case "/translate":
		return Command{Kind: CmdTranslate, Rest: rest}, true
	case "/next":
		return Command{Kind: CmdNext}, true
	case "/playlist":
		return Command{Kind: CmdPlaylist}, true
	case "/clear":
		return Command{Kind: CmdClear}, true
	case "/music":
		if len(fields) >= 2 {
			sub := fields[1]
			subRest := strings.TrimSpace(strings.TrimPrefix(rest, sub))
			switch sub {
			case "add":
				return Command{Kind: CmdMusicAdd, Rest: subRest}, true
			case "list":
				return Command{Kind: CmdMusicList}, true
			case "play":
				return Command{Kind: CmdMusicPlay}, true
			}
		}
		return Command{}, false
	}
	return Command{}, false
}

func parseAI(fields []string, rest string) Command {
	if len(fields) < 2 {
		return Command{Kind: CmdAIChat}
	}
	switch fields[1] {
	case "on":
		if len(fields) == 2 {
			return Command{Kind: CmdAIOn, Rest: rest}
		}
	case "off":
		if len(fields) == 2 {
			return Command{Kind: CmdAIOff, Rest: rest}
		}
	case "manage":
		if len(fields) == 3 {
			switch fields[2] {
			case "on":
				return Command{Kind: CmdAIManageOn, Rest: rest}
			case "off":
				return Command{Kind: CmdAIManageOff, Rest: rest}
			}
		}
	case "model":
		if len(fields) == 2 {
			return Command{Kind: CmdAIModelShow, Rest: rest}
		}
		if len(fields) == 3 {
			return Command{Kind: CmdAIModelSet, Arg: fields[2], Rest: rest}
		}
	case "models":
		if len(fields) == 2 {
			return Command{Kind: CmdAIModels, Rest: rest}
		}
	}
	// Anything else after /ai is a chat prompt.
	return Command{Kind: CmdAIChat, Rest: rest}
}

// IsAdminOnly reports whether the kind may only be executed by the admin.
func (k CommandKind) IsAdminOnly() bool {
	return k <= CmdUnban
}

func (k CommandKind) String() string {
	switch k {
	case CmdAIOn:
		return "ai_on"
	case CmdAIOff:
		return "ai_off"
	case CmdAIManageOn:
		return "ai_manage_on"
	case CmdAIManageOff:
		return "ai_manage_off"
	case CmdAIModelShow:
		return "ai_model_show"
	case CmdAIModelSet:
		return "ai_model_set"
	case CmdAIModels:
		return "ai_models"
	case CmdHangOn:
		return "hang_on"
	case CmdHangOff:
		return "hang_off"
	case CmdHelp:
		return "help"
	case CmdKick:
		return "kick"
	case CmdBan:
		return "ban"
	case CmdUnban:
		return "unban"
	case CmdAIChat:
		return "ai_chat"
	case CmdPlay:
		return "play"
	case CmdNetMusic:
		return "netmusic"
	case CmdQQMusic:
		return "qqmusic"
	case CmdTTS:
		return "tts"
	case CmdNext:
		return "next"
	case CmdPlaylist:
		return "playlist"
	case CmdClear:
		return "clear"
	case CmdMusicAdd:
		return "music_add"
	case CmdMusicList:
		return "music_list"
	case CmdMusicPlay:
		return "music_play"
	case CmdJoke:
		return "joke"
	case CmdTranslate:
		return "translate"
	default:
		return "unknown"
	}
}
