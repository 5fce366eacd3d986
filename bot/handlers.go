package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/onnwee/roomwarden/moderation"
	"github.com/onnwee/roomwarden/providers"
	"github.com/onnwee/roomwarden/telemetry"
)

// moderator is the slice of the room client used for enforcement calls.
type moderator interface {
	Kick(ctx context.Context, userID string) error
	Ban(ctx context.Context, userID string) error
	Unban(ctx context.Context, userID, userName string) error
}

const (
	jokePrompt      = "请给我讲一个简短的笑话，最好是中文的，适合在聊天室分享。"
	translatePrompt = "请翻译以下内容（中文译成英文，其他语言译成中文），只输出译文：\n"
)

const helpText = `DRRR 增强版AI机器人 帮助信息:

AI功能命令（仅限管理员）:
/ai on - 开启AI功能
/ai off - 关闭AI功能
/ai <问题> - 与AI对话
/ai model - 查看当前AI模型
/ai models - 查看可用AI模型列表
/ai model <模型名> - 切换AI模型
/ai manage on - 开启AI房间管理功能
/ai manage off - 关闭AI房间管理功能

音乐点播命令（所有用户）:
/play <歌曲名> <链接> - 添加歌曲到播放列表
/netmusic <歌曲名> - 搜索歌曲并加入播放列表
/qqmusic <歌曲名> - 搜索QQ音乐并直接输出链接
/tts <文本> - 将文本转换为语音并直接输出链接
/next - 播放下一首歌曲
/playlist - 查看播放列表
/clear - 清空播放列表

信息查询命令（所有用户）:
/joke - 随机段子
/translate <内容> - 翻译内容

系统命令（仅限管理员）:
/hang on - 开启挂房功能
/hang off - 关闭挂房功能
/kick <用户名> - 踢出指定用户
/ban <用户名> - 封禁指定用户
/unban <用户名> - 解封指定用户
/help - 显示帮助信息`

// Handler executes parsed commands and moderation outcomes. All methods run
// on the polling loop's goroutine; only outbound sends are handed to
// background tasks, which never touch State or the playlist.
type Handler struct {
	sender   *Sender
	room     moderator
	ai       providers.AIProvider
	music    providers.MusicProvider
	tts      providers.TTSProvider
	playlist *Playlist
	state    *State
	policy   *moderation.Policy
	models   []string

	// resolve maps a display name to a user id from the latest snapshot.
	resolve func(name string) (string, bool)

	spawn func(func())
	after func(time.Duration, func())
}

// NewHandler wires a handler over the bot's collaborators.
func NewHandler(sender *Sender, room moderator, ai providers.AIProvider, music providers.MusicProvider, tts providers.TTSProvider, playlist *Playlist, state *State, policy *moderation.Policy, models []string, resolve func(string) (string, bool)) *Handler {
	return &Handler{
		sender:   sender,
		room:     room,
		ai:       ai,
		music:    music,
		tts:      tts,
		playlist: playlist,
		state:    state,
		policy:   policy,
		models:   models,
		resolve:  resolve,
		spawn:    func(fn func()) { go fn() },
		after: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Dispatch parses text and executes the command. It reports whether the
// message was consumed; false means the message is ordinary chat.
func (h *Handler) Dispatch(ctx context.Context, userName, userID, text string) bool {
	cmd, ok := ParseCommand(text)
	if !ok {
		return false
	}
	if cmd.Kind.IsAdminOnly() && !h.policy.IsAdmin(userName) {
		// Non-admin "/ai on" and friends read as chat prompts; the other
		// admin commands are ignored as ordinary messages.
		if cmd.Kind <= CmdAIModels {
			cmd = Command{Kind: CmdAIChat, Rest: cmd.Rest}
		} else {
			return false
		}
	}
	telemetry.IncCommandsHandled(cmd.Kind.String())

	switch cmd.Kind {
	case CmdAIOn:
		h.state.AIEnabled = true
		slog.Info("ai chat enabled", slog.String("by", userName))
		h.send(ctx, "AI对话功能已开启")
	case CmdAIOff:
		h.state.AIEnabled = false
		slog.Info("ai chat disabled", slog.String("by", userName))
		h.send(ctx, "AI对话功能已关闭")
	case CmdAIManageOn:
		h.state.AIManageEnabled = true
		slog.Info("room management enabled", slog.String("by", userName))
		h.send(ctx, "AI房间管理功能已开启")
	case CmdAIManageOff:
		h.state.AIManageEnabled = false
		slog.Info("room management disabled", slog.String("by", userName))
		h.send(ctx, "AI房间管理功能已关闭")
	case CmdAIModelShow:
		h.send(ctx, "当前AI模型: "+h.state.CurrentModel)
	case CmdAIModelSet:
		h.setModel(ctx, cmd.Arg)
	case CmdAIModels:
		h.send(ctx, "可用AI模型: "+strings.Join(h.models, ", "))
	case CmdHangOn:
		h.state.HangEnabled = true
		h.send(ctx, "挂房功能已开启")
	case CmdHangOff:
		h.state.HangEnabled = false
		h.send(ctx, "挂房功能已关闭")
	case CmdHelp:
		h.send(ctx, helpText)
	case CmdKick:
		h.enforce(ctx, cmd.Rest, "踢出", h.room.Kick)
	case CmdBan:
		h.enforce(ctx, cmd.Rest, "封禁", h.room.Ban)
	case CmdUnban:
		h.unban(ctx, cmd.Rest)
	case CmdAIChat:
		h.aiChat(ctx, userName, cmd.Rest)
	case CmdJoke:
		h.joke(ctx, userName)
	case CmdTranslate:
		h.translate(ctx, userName, cmd.Rest)
	case CmdPlay:
		h.play(ctx, userName, cmd.Arg, cmd.Rest)
	case CmdNetMusic:
		h.netMusic(ctx, userName, cmd.Rest)
	case CmdQQMusic:
		h.qqMusic(ctx, userName, cmd.Rest)
	case CmdTTS:
		h.ttsCommand(ctx, userName, cmd.Rest)
	case CmdNext, CmdMusicPlay:
		h.playNext(ctx)
	case CmdPlaylist, CmdMusicList:
		h.listPlaylist(ctx, userName)
	case CmdClear:
		h.playlist.Clear()
		telemetry.SetPlaylistDepth(0)
		slog.Info("playlist cleared", slog.String("by", userName))
		h.send(ctx, "@"+userName+" 播放列表已清空")
	case CmdMusicAdd:
		h.musicAdd(ctx, userName, cmd.Rest)
	}
	return true
}

func (h *Handler) send(ctx context.Context, text string) {
	if err := h.sender.Send(ctx, text); err != nil {
		slog.Error("send failed", slog.Any("err", err))
	}
}

func (h *Handler) setModel(ctx context.Context, name string) {
	for _, m := range h.models {
		if m == name {
			h.state.CurrentModel = name
			slog.Info("ai model switched", slog.String("model", name))
			h.send(ctx, "AI模型已切换为: "+name)
			return
		}
	}
	h.send(ctx, fmt.Sprintf("无效的AI模型: %s\n可用模型: %s", name, strings.Join(h.models, ", ")))
}

// enforce handles /kick and /ban: resolve the target name against the latest
// snapshot and issue the room call.
func (h *Handler) enforce(ctx context.Context, target, verb string, act func(context.Context, string) error) {
	if target == "" {
		h.send(ctx, fmt.Sprintf("请提供要%s的用户名: /%s <用户名>", verb, verbCommand(verb)))
		return
	}
	id, ok := h.resolve(target)
	if !ok {
		h.send(ctx, "未找到用户: "+target)
		return
	}
	if err := act(ctx, id); err != nil {
		slog.Error("enforcement call failed", slog.String("verb", verb), slog.String("target", target), slog.Any("err", err))
	}
	h.send(ctx, fmt.Sprintf("已发送%s用户 %s 的指令", verb, target))
}

func verbCommand(verb string) string {
	if verb == "踢出" {
		return "kick"
	}
	return "ban"
}

func (h *Handler) unban(ctx context.Context, target string) {
	if target == "" {
		h.send(ctx, "请提供要解封的用户名: /unban <用户名>")
		return
	}
	// A banned user is absent from the snapshot, so the transport takes the
	// name itself.
	id, _ := h.resolve(target)
	if err := h.room.Unban(ctx, id, target); err != nil {
		slog.Error("unban call failed", slog.String("target", target), slog.Any("err", err))
	}
	h.send(ctx, fmt.Sprintf("已发送解封用户 %s 的指令", target))
}

func (h *Handler) aiChat(ctx context.Context, userName, prompt string) {
	if !h.state.AIEnabled {
		if h.policy.IsAdmin(userName) {
			h.send(ctx, "AI对话功能未开启，请使用 '/ai on' 命令开启")
		} else {
			h.send(ctx, "AI对话功能未开启，请管理员先开启")
		}
		return
	}
	if prompt == "" {
		h.send(ctx, "请输入要对话的内容")
		return
	}
	h.send(ctx, "@"+userName+" 正在处理您的请求，请稍等...")

	// Snapshot the model before leaving the loop goroutine.
	model := h.state.CurrentModel
	h.spawn(func() {
		reply, err := h.ai.Generate(ctx, model, prompt)
		if err != nil {
			telemetry.IncProviderFailures("ai")
			slog.Error("ai generation failed", slog.String("user", userName), slog.Any("err", err))
			reply = providers.FailureText(err)
		}
		h.send(ctx, "@"+userName+" "+reply)
	})
}

func (h *Handler) joke(ctx context.Context, userName string) {
	model := h.state.CurrentModel
	h.spawn(func() {
		joke, err := h.ai.Generate(ctx, model, jokePrompt)
		if err != nil {
			telemetry.IncProviderFailures("ai")
			slog.Error("joke generation failed", slog.Any("err", err))
			joke = "抱歉，暂时无法生成笑话，请稍后再试。"
		}
		h.send(ctx, "@"+userName+" "+joke)
	})
}

func (h *Handler) translate(ctx context.Context, userName, text string) {
	if text == "" {
		h.send(ctx, "请提供要翻译的内容: /translate <内容>")
		return
	}
	model := h.state.CurrentModel
	h.spawn(func() {
		out, err := h.ai.Generate(ctx, model, translatePrompt+text)
		if err != nil {
			telemetry.IncProviderFailures("ai")
			slog.Error("translation failed", slog.Any("err", err))
			out = providers.FailureText(err)
		}
		h.send(ctx, "@"+userName+" "+out)
	})
}

func (h *Handler) play(ctx context.Context, userName, title, trackURL string) {
	if title == "" || trackURL == "" {
		h.send(ctx, "请使用格式: /play <歌曲名> <链接>")
		return
	}
	h.playlist.Add(title, trackURL)
	telemetry.SetPlaylistDepth(h.playlist.Len())
	slog.Info("track queued", slog.String("user", userName), slog.String("title", title))
	h.send(ctx, fmt.Sprintf("@%s 已添加歌曲 '%s' 到播放列表", userName, title))
}

func (h *Handler) musicAdd(ctx context.Context, userName, trackURL string) {
	if trackURL == "" {
		return
	}
	h.playlist.Add("", trackURL)
	telemetry.SetPlaylistDepth(h.playlist.Len())
	h.send(ctx, "@"+userName+" 已添加到播放列表")
}

func (h *Handler) netMusic(ctx context.Context, userName, query string) {
	if query == "" {
		h.send(ctx, "请提供要搜索的歌曲名: /netmusic <歌曲名>")
		return
	}
	h.send(ctx, fmt.Sprintf("@%s 正在搜索歌曲: %s", userName, query))
	track, err := h.music.Search(ctx, query)
	if err != nil {
		telemetry.IncProviderFailures("music")
		slog.Error("music search failed", slog.String("query", query), slog.Any("err", err))
		h.send(ctx, fmt.Sprintf("@%s 抱歉，未找到与'%s'相关的歌曲。", userName, query))
		return
	}
	h.playlist.Add(track.Title, track.URL)
	telemetry.SetPlaylistDepth(h.playlist.Len())
	h.send(ctx, fmt.Sprintf("@%s 已添加歌曲 '%s' 到播放列表", userName, track.Title))
}

func (h *Handler) qqMusic(ctx context.Context, userName, query string) {
	if query == "" {
		h.send(ctx, "请提供要搜索的歌曲名: /qqmusic <歌曲名>")
		return
	}
	h.send(ctx, fmt.Sprintf("@%s 正在搜索QQ音乐: %s", userName, query))
	track, err := h.music.Search(ctx, query)
	if err != nil {
		telemetry.IncProviderFailures("music")
		slog.Error("music search failed", slog.String("query", query), slog.Any("err", err))
		if providers.KindOf(err) == providers.KindEmptyResponse {
			h.send(ctx, fmt.Sprintf("@%s 抱歉，未找到与'%s'相关的歌曲。", userName, query))
		} else {
			h.send(ctx, "@"+userName+" 抱歉，暂时无法搜索QQ音乐，请稍后再试。")
		}
		return
	}
	h.send(ctx, fmt.Sprintf("@%s 找到歌曲: %s\n歌曲链接: %s", userName, track.Title, track.URL))
}

func (h *Handler) ttsCommand(ctx context.Context, userName, text string) {
	if text == "" {
		h.send(ctx, "请提供要转换的文本: /tts <文本>")
		return
	}
	h.send(ctx, "@"+userName+" 正在将文本转换为语音...")
	link, err := h.tts.Synthesize(ctx, text)
	if err != nil {
		telemetry.IncProviderFailures("tts")
		slog.Error("tts failed", slog.Any("err", err))
		h.send(ctx, "@"+userName+" 文本转语音失败，请稍后再试")
		return
	}
	h.send(ctx, fmt.Sprintf("@%s 文本转语音完成:\n%s", userName, link))
}

func (h *Handler) playNext(ctx context.Context) {
	entry, ok := h.playlist.PopFront()
	if !ok {
		h.send(ctx, "播放列表为空")
		return
	}
	telemetry.SetPlaylistDepth(h.playlist.Len())
	title := entry.Title
	if title == "" {
		title = entry.URL
	}
	h.send(ctx, "正在播放: "+title)
	if err := h.sender.SendMusic(ctx, title, entry.URL); err != nil {
		slog.Error("music share failed", slog.String("title", title), slog.Any("err", err))
	}
}

func (h *Handler) listPlaylist(ctx context.Context, userName string) {
	entries := h.playlist.Entries()
	if len(entries) == 0 {
		h.send(ctx, "@"+userName+" 播放列表为空")
		return
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, "@"+userName+" 当前播放列表:")
	for _, e := range entries {
		if e.Title != "" {
			lines = append(lines, e.Title+" "+e.URL)
		} else {
			lines = append(lines, e.URL)
		}
	}
	h.send(ctx, strings.Join(lines, "\n"))
}

// HandleViolation schedules the warning reply for a non-allow decision and
// applies the escalation action. Warnings go out on a randomized delay so the
// bot does not answer misbehavior instantly; rate-limit warnings are only
// sent for the first two violations to avoid feeding a flood.
func (h *Handler) HandleViolation(ctx context.Context, userName, userID string, d moderation.Decision) {
	var (
		warning string
		delay   time.Duration
	)
	switch d.Kind {
	case moderation.RateLimited:
		telemetry.IncViolations("rate")
		if d.Count <= 2 {
			warning = fmt.Sprintf("@%s 您发送消息过于频繁，请稍后再试。这是第%d次违规。", userName, d.Count)
			delay = randomDelay(1, 3)
		}
	case moderation.Repeating:
		telemetry.IncViolations("repeat")
		warning = fmt.Sprintf("@%s 请勿重复发送相同消息。这是第%d次违规。", userName, d.Count)
		delay = randomDelay(5, 10)
	case moderation.Flagged:
		telemetry.IncViolations("flagged")
		warning = fmt.Sprintf("@%s 发送的消息包含不当内容，已被系统拦截。请遵守聊天室规则。这是第%d次违规。", userName, d.Count)
		delay = randomDelay(5, 10)
	default:
		return
	}
	if warning != "" {
		slog.Info("warning scheduled",
			slog.String("user", userName),
			slog.Int("violations", d.Count),
			slog.Duration("delay", delay))
		h.after(delay, func() { h.send(ctx, warning) })
	}
	if !h.state.AIManageEnabled {
		return
	}
	switch moderation.Escalation(d.Count) {
	case moderation.ActionKick:
		telemetry.IncRoomActions("kick")
		if err := h.room.Kick(ctx, userID); err != nil {
			slog.Error("kick failed", slog.String("user", userName), slog.Any("err", err))
		}
		h.send(ctx, fmt.Sprintf("用户 %s 已被管理员踢出房间", userName))
	case moderation.ActionBan:
		telemetry.IncRoomActions("ban")
		if err := h.room.Ban(ctx, userID); err != nil {
			slog.Error("ban failed", slog.String("user", userName), slog.Any("err", err))
		}
		h.send(ctx, fmt.Sprintf("用户 %s 已被管理员封禁", userName))
	}
}

func randomDelay(minSec, maxSec int) time.Duration {
	return time.Duration(minSec+rand.Intn(maxSec-minSec+1)) * time.Second
}
