package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandWorker はワーカーモード（定期取り込み＋管理サーバー）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandIngest は指定期間の取り込みを1回実行することを示す。
	CommandIngest Command = "ingest"
	// CommandRepair はレガシーデータ修復を実行することを示す。
	CommandRepair Command = "repair"
	// CommandExport は全会話ログのExcelエクスポートを実行することを示す。
	CommandExport Command = "export"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandWorkerを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandWorker
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "ingest":
		return CommandIngest
	case "repair":
		return CommandRepair
	case "export":
		return CommandExport
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandWorker
	}
}
