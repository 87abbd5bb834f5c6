package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe は運用HTTPサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（定期取り込み＋日次クリーンアップ）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandIngest は取り込みパイプラインを1回実行することを示す。
	// 引数にユーザーIDを与えると単一ユーザーモードになる。
	CommandIngest Command = "ingest"
	// CommandDigest はダイジェストメールの送信を1回実行することを示す。
	CommandDigest Command = "digest"
	// CommandCleanup は保持期間切れリンクの削除を1回実行することを示す。
	CommandCleanup Command = "cleanup"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed は学術誌フィードカタログの初期投入を実行することを示す。
	CommandSeed Command = "seed"
	// CommandAddUser は新規ユーザーの登録を実行することを示す。
	// 引数にユーザー名とメールアドレスを取る。
	CommandAddUser Command = "adduser"
	// CommandAddFeed はフィードの検出・登録を実行することを示す。
	// 引数に出版社名・学術誌名・URLを取る。
	CommandAddFeed Command = "addfeed"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドと残りの引数を解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) (Command, []string) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch args[0] {
	case "serve":
		return CommandServe, args[1:]
	case "worker":
		return CommandWorker, args[1:]
	case "ingest":
		return CommandIngest, args[1:]
	case "digest":
		return CommandDigest, args[1:]
	case "cleanup":
		return CommandCleanup, args[1:]
	case "migrate":
		return CommandMigrate, args[1:]
	case "seed":
		return CommandSeed, args[1:]
	case "adduser":
		return CommandAddUser, args[1:]
	case "addfeed":
		return CommandAddFeed, args[1:]
	case "healthcheck":
		return CommandHealthcheck, args[1:]
	default:
		return CommandServe, nil
	}
}
