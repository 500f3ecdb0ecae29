package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandAnnounce はアナウンスサイクルを1回実行して終了することを示す。
	// 外部スケジューラ（cron等）からの定期起動を想定している。
	CommandAnnounce Command = "announce"
	// CommandServe は管理APIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandAnnounceを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandAnnounce
	}

	switch args[0] {
	case "announce":
		return CommandAnnounce
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandAnnounce
	}
}
