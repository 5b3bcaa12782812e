package app

// Command はアプリケーションの起動モード。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。アイドルなワークスペースの破棄も同じプロセスで行う。
	CommandServe Command = "serve"
	// CommandMigrate はpostgresバックエンドのkv_entriesスキーマを最新にする。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを確認する。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを解析する。
// 引数が空、または未知のサブコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) > 0 {
		if cmd, ok := commands[args[0]]; ok {
			return cmd
		}
	}
	return CommandServe
}

// RequiresConfig はサブコマンドの実行に環境変数からの設定読み込みが必要かを返す。
// healthcheckはSERVER_PORTだけを参照する。
func (c Command) RequiresConfig() bool {
	return c != CommandHealthcheck
}
