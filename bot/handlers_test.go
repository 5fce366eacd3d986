package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/roomwarden/moderation"
	"github.com/onnwee/roomwarden/providers"
	"github.com/onnwee/roomwarden/testutil"
)

const testAdmin = "52Hertz"

type handlerHarness struct {
	h        *Handler
	room     *testutil.FakeRoom
	ai       *testutil.ScriptedAI
	music    *testutil.ScriptedMusic
	tts      *testutil.ScriptedTTS
	state    *State
	playlist *Playlist
	policy   *moderation.Policy
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	room := &testutil.FakeRoom{}
	sender := NewSender(room)
	sender.sleep = func(time.Duration) {}

	ai := &testutil.ScriptedAI{}
	music := &testutil.ScriptedMusic{Track: providers.Track{Title: "晴天 - 周杰伦", URL: "http://example.com/qingtian.mp3"}}
	tts := &testutil.ScriptedTTS{Link: "http://example.com/voice.mp3"}
	playlist := &Playlist{}
	state := NewState("V3")
	ledger := moderation.OpenLedger(filepath.Join(t.TempDir(), "violations.json"))
	policy := moderation.NewPolicy(testAdmin,
		moderation.NewRateLimiter(5, time.Minute),
		moderation.NewRepeatDetector(3),
		moderation.NewContentFilter(),
		ledger)

	users := map[string]string{"路人甲": "u9"}
	h := NewHandler(sender, room, ai, music, tts, playlist, state, policy,
		[]string{"V3", "R1"},
		func(name string) (string, bool) { id, ok := users[name]; return id, ok })
	// Run background tasks and delayed warnings inline for determinism.
	h.spawn = func(fn func()) { fn() }
	h.after = func(_ time.Duration, fn func()) { fn() }

	return &handlerHarness{h: h, room: room, ai: ai, music: music, tts: tts, state: state, playlist: playlist, policy: policy}
}

func (hh *handlerHarness) dispatch(t *testing.T, user, text string) bool {
	t.Helper()
	return hh.h.Dispatch(context.Background(), user, "uid-"+user, text)
}

func (hh *handlerHarness) lastMessage(t *testing.T) string {
	t.Helper()
	msgs := hh.room.SentMessages()
	if len(msgs) == 0 {
		t.Fatal("no messages sent")
	}
	return msgs[len(msgs)-1]
}

func TestAdminTogglesAI(t *testing.T) {
	hh := newHandlerHarness(t)

	if !hh.dispatch(t, testAdmin, "/ai on") {
		t.Fatal("command not handled")
	}
	if !hh.state.AIEnabled {
		t.Error("AI chat not enabled")
	}
	if got := hh.lastMessage(t); got != "AI对话功能已开启" {
		t.Errorf("reply = %q", got)
	}

	hh.dispatch(t, testAdmin, "/ai off")
	if hh.state.AIEnabled {
		t.Error("AI chat still enabled")
	}
}

func TestNonAdminAICommandBecomesChat(t *testing.T) {
	hh := newHandlerHarness(t)

	// AI is off, so a non-admin "/ai on" reads as a chat attempt and gets
	// the disabled notice, never flipping the flag.
	if !hh.dispatch(t, "路人甲", "/ai on") {
		t.Fatal("command not handled")
	}
	if hh.state.AIEnabled {
		t.Error("non-admin enabled AI chat")
	}
	if got := hh.lastMessage(t); got != "AI对话功能未开启，请管理员先开启" {
		t.Errorf("reply = %q", got)
	}
	if hh.ai.CallCount() != 0 {
		t.Errorf("provider called %d times while disabled", hh.ai.CallCount())
	}
}

func TestNonAdminSystemCommandsIgnored(t *testing.T) {
	hh := newHandlerHarness(t)

	for _, text := range []string{"/kick 路人甲", "/ban 路人甲", "/hang on", "/help"} {
		if hh.dispatch(t, "路人甲", text) {
			t.Errorf("%q handled for non-admin", text)
		}
	}
	if len(hh.room.SentMessages()) != 0 {
		t.Errorf("replies sent: %v", hh.room.SentMessages())
	}
}

func TestAIChatEndToEnd(t *testing.T) {
	hh := newHandlerHarness(t)
	hh.ai.Replies = []string{"你好呀"}

	hh.dispatch(t, testAdmin, "/ai on")
	hh.dispatch(t, testAdmin, "/ai 你好")

	if hh.ai.CallCount() != 1 {
		t.Fatalf("provider called %d times, want 1", hh.ai.CallCount())
	}
	if hh.ai.Prompts[0] != "你好" {
		t.Errorf("prompt = %q, want 你好", hh.ai.Prompts[0])
	}
	if hh.ai.Models[0] != "V3" {
		t.Errorf("model = %q, want V3", hh.ai.Models[0])
	}

	msgs := hh.room.SentMessages()
	var replies []string
	for _, m := range msgs {
		if strings.HasPrefix(m, "@"+testAdmin+" ") && !strings.Contains(m, "请稍等") {
			replies = append(replies, m)
		}
	}
	if len(replies) != 1 || replies[0] != "@"+testAdmin+" 你好呀" {
		t.Fatalf("replies = %v, want exactly one", replies)
	}
}

func TestAIChatTimeoutExhaustsRetries(t *testing.T) {
	hh := newHandlerHarness(t)
	scripted := &testutil.ScriptedAI{Errs: []error{&providers.Error{Kind: providers.KindTimeout}}}
	hh.h.ai = &providers.RetryingAI{Provider: scripted, Attempts: 3, Delay: 0}

	hh.dispatch(t, testAdmin, "/ai on")
	hh.dispatch(t, testAdmin, "/ai 你好")

	if scripted.CallCount() != 3 {
		t.Fatalf("provider called %d times, want 3", scripted.CallCount())
	}
	var failures int
	for _, m := range hh.room.SentMessages() {
		if strings.Contains(m, "AI接口请求超时") {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("failure replies = %d, want exactly 1", failures)
	}
}

func TestAIChatEmptyPrompt(t *testing.T) {
	hh := newHandlerHarness(t)
	hh.dispatch(t, testAdmin, "/ai on")
	hh.dispatch(t, testAdmin, "/ai")
	if got := hh.lastMessage(t); got != "请输入要对话的内容" {
		t.Errorf("reply = %q", got)
	}
}

func TestModelSwitching(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, testAdmin, "/ai model")
	if got := hh.lastMessage(t); got != "当前AI模型: V3" {
		t.Errorf("show reply = %q", got)
	}

	hh.dispatch(t, testAdmin, "/ai model R1")
	if hh.state.CurrentModel != "R1" {
		t.Errorf("model = %q, want R1", hh.state.CurrentModel)
	}
	if got := hh.lastMessage(t); got != "AI模型已切换为: R1" {
		t.Errorf("switch reply = %q", got)
	}

	hh.dispatch(t, testAdmin, "/ai model X9")
	if hh.state.CurrentModel != "R1" {
		t.Error("invalid model overwrote current")
	}
	if got := hh.lastMessage(t); !strings.Contains(got, "无效的AI模型: X9") || !strings.Contains(got, "V3, R1") {
		t.Errorf("invalid reply = %q", got)
	}

	hh.dispatch(t, testAdmin, "/ai models")
	if got := hh.lastMessage(t); got != "可用AI模型: V3, R1" {
		t.Errorf("models reply = %q", got)
	}
}

func TestKickResolvesUser(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, testAdmin, "/kick 路人甲")
	if len(hh.room.Kicked) != 1 || hh.room.Kicked[0] != "u9" {
		t.Fatalf("kicked = %v, want [u9]", hh.room.Kicked)
	}
	if got := hh.lastMessage(t); got != "已发送踢出用户 路人甲 的指令" {
		t.Errorf("reply = %q", got)
	}

	hh.dispatch(t, testAdmin, "/kick 幽灵")
	if got := hh.lastMessage(t); got != "未找到用户: 幽灵" {
		t.Errorf("reply = %q", got)
	}

	hh.dispatch(t, testAdmin, "/kick")
	if got := hh.lastMessage(t); got != "请提供要踢出的用户名: /kick <用户名>" {
		t.Errorf("usage reply = %q", got)
	}
}

func TestBanAndUnban(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, testAdmin, "/ban 路人甲")
	if len(hh.room.Banned) != 1 || hh.room.Banned[0] != "u9" {
		t.Fatalf("banned = %v", hh.room.Banned)
	}

	hh.dispatch(t, testAdmin, "/unban 路人甲")
	if len(hh.room.Unbanned) != 1 || hh.room.Unbanned[0] != "路人甲" {
		t.Fatalf("unbanned = %v", hh.room.Unbanned)
	}
	if got := hh.lastMessage(t); got != "已发送解封用户 路人甲 的指令" {
		t.Errorf("reply = %q", got)
	}
}

func TestPlaylistCommands(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, "路人甲", "/play 晴天 http://example.com/a.mp3")
	if hh.playlist.Len() != 1 {
		t.Fatalf("playlist len = %d", hh.playlist.Len())
	}
	if got := hh.lastMessage(t); got != "@路人甲 已添加歌曲 '晴天' 到播放列表" {
		t.Errorf("add reply = %q", got)
	}

	hh.dispatch(t, "路人甲", "/playlist")
	if got := hh.lastMessage(t); !strings.Contains(got, "当前播放列表:") || !strings.Contains(got, "晴天 http://example.com/a.mp3") {
		t.Errorf("list reply = %q", got)
	}

	hh.dispatch(t, "路人甲", "/next")
	if hh.playlist.Len() != 0 {
		t.Error("next did not pop")
	}
	if len(hh.room.MusicSent) != 1 || hh.room.MusicSent[0][1] != "http://example.com/a.mp3" {
		t.Fatalf("music sent = %v", hh.room.MusicSent)
	}

	hh.dispatch(t, "路人甲", "/next")
	if got := hh.lastMessage(t); got != "播放列表为空" {
		t.Errorf("empty reply = %q", got)
	}

	hh.dispatch(t, "路人甲", "/play 晴天 http://example.com/a.mp3")
	hh.dispatch(t, "路人甲", "/clear")
	if hh.playlist.Len() != 0 {
		t.Error("clear left entries")
	}
	if got := hh.lastMessage(t); got != "@路人甲 播放列表已清空" {
		t.Errorf("clear reply = %q", got)
	}

	hh.dispatch(t, "路人甲", "/play 晴天")
	if got := hh.lastMessage(t); got != "请使用格式: /play <歌曲名> <链接>" {
		t.Errorf("usage reply = %q", got)
	}
}

func TestLegacyMusicCommands(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, "路人甲", "/music add http://example.com/b.mp3")
	if hh.playlist.Len() != 1 {
		t.Fatalf("playlist len = %d", hh.playlist.Len())
	}
	if got := hh.lastMessage(t); got != "@路人甲 已添加到播放列表" {
		t.Errorf("add reply = %q", got)
	}

	hh.dispatch(t, "路人甲", "/music play")
	if hh.playlist.Len() != 0 || len(hh.room.MusicSent) != 1 {
		t.Error("music play did not share the queued track")
	}
}

func TestNetMusicQueuesResult(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, "路人甲", "/netmusic 晴天")
	if hh.playlist.Len() != 1 {
		t.Fatalf("playlist len = %d", hh.playlist.Len())
	}
	if e := hh.playlist.Entries()[0]; e.Title != "晴天 - 周杰伦" {
		t.Errorf("queued title = %q", e.Title)
	}
	if got := hh.lastMessage(t); got != "@路人甲 已添加歌曲 '晴天 - 周杰伦' 到播放列表" {
		t.Errorf("reply = %q", got)
	}
}

func TestQQMusicDirectLink(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, "路人甲", "/qqmusic 晴天")
	if got := hh.lastMessage(t); !strings.Contains(got, "找到歌曲: 晴天 - 周杰伦") || !strings.Contains(got, "歌曲链接: http://example.com/qingtian.mp3") {
		t.Errorf("reply = %q", got)
	}
	if hh.playlist.Len() != 0 {
		t.Error("qqmusic must not queue")
	}

	hh.music.Err = &providers.Error{Kind: providers.KindEmptyResponse}
	hh.dispatch(t, "路人甲", "/qqmusic 不存在的歌")
	if got := hh.lastMessage(t); got != "@路人甲 抱歉，未找到与'不存在的歌'相关的歌曲。" {
		t.Errorf("not-found reply = %q", got)
	}
}

func TestTTSCommand(t *testing.T) {
	hh := newHandlerHarness(t)

	hh.dispatch(t, "路人甲", "/tts 你好")
	if got := hh.lastMessage(t); got != "@路人甲 文本转语音完成:\nhttp://example.com/voice.mp3" {
		t.Errorf("reply = %q", got)
	}

	hh.tts.Err = &providers.Error{Kind: providers.KindNetwork}
	hh.dispatch(t, "路人甲", "/tts 再试")
	if got := hh.lastMessage(t); got != "@路人甲 文本转语音失败，请稍后再试" {
		t.Errorf("failure reply = %q", got)
	}
}

func TestJokeAndTranslate(t *testing.T) {
	hh := newHandlerHarness(t)
	hh.ai.Replies = []string{"有个程序员笑话", "hello"}

	hh.dispatch(t, "路人甲", "/joke")
	if got := hh.lastMessage(t); got != "@路人甲 有个程序员笑话" {
		t.Errorf("joke reply = %q", got)
	}

	hh.dispatch(t, "路人甲", "/translate 你好")
	if got := hh.lastMessage(t); got != "@路人甲 hello" {
		t.Errorf("translate reply = %q", got)
	}
	if !strings.HasSuffix(hh.ai.Prompts[1], "你好") {
		t.Errorf("translate prompt = %q", hh.ai.Prompts[1])
	}

	hh.dispatch(t, "路人甲", "/translate")
	if got := hh.lastMessage(t); got != "请提供要翻译的内容: /translate <内容>" {
		t.Errorf("usage reply = %q", got)
	}
}

func TestViolationWarningsAndEscalation(t *testing.T) {
	hh := newHandlerHarness(t)
	ctx := context.Background()

	hh.h.HandleViolation(ctx, "路人甲", "u9", moderation.Decision{Kind: moderation.RateLimited, Count: 1})
	if got := hh.lastMessage(t); got != "@路人甲 您发送消息过于频繁，请稍后再试。这是第1次违规。" {
		t.Errorf("rate warning = %q", got)
	}

	// Third rate violation: no warning anymore, but a ban.
	before := len(hh.room.SentMessages())
	hh.h.HandleViolation(ctx, "路人甲", "u9", moderation.Decision{Kind: moderation.RateLimited, Count: 3})
	if len(hh.room.Banned) != 1 || hh.room.Banned[0] != "u9" {
		t.Fatalf("banned = %v", hh.room.Banned)
	}
	msgs := hh.room.SentMessages()[before:]
	if len(msgs) != 1 || msgs[0] != "用户 路人甲 已被管理员封禁" {
		t.Fatalf("messages = %v, want ban notice only", msgs)
	}

	hh.h.HandleViolation(ctx, "路人甲", "u9", moderation.Decision{Kind: moderation.Flagged, Count: 5, Reason: "赌博"})
	if len(hh.room.Kicked) != 1 || hh.room.Kicked[0] != "u9" {
		t.Fatalf("kicked = %v", hh.room.Kicked)
	}
	if got := hh.lastMessage(t); got != "用户 路人甲 已被管理员踢出房间" {
		t.Errorf("kick notice = %q", got)
	}

	hh.h.HandleViolation(ctx, "路人甲", "u9", moderation.Decision{Kind: moderation.Repeating, Count: 2})
	if got := hh.lastMessage(t); got != "@路人甲 请勿重复发送相同消息。这是第2次违规。" {
		t.Errorf("repeat warning = %q", got)
	}
}

func TestManageOffSuppressesEscalation(t *testing.T) {
	hh := newHandlerHarness(t)
	hh.state.AIManageEnabled = false

	hh.h.HandleViolation(context.Background(), "路人甲", "u9", moderation.Decision{Kind: moderation.Repeating, Count: 4})
	if len(hh.room.Banned) != 0 || len(hh.room.Kicked) != 0 {
		t.Error("escalation fired with management disabled")
	}
	// The warning still goes out.
	if got := hh.lastMessage(t); !strings.Contains(got, "请勿重复发送相同消息") {
		t.Errorf("warning = %q", got)
	}
}
