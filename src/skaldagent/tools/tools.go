package tools

// Barrel re-exports for the individual tool packages, so callers can wire a
// toolset without importing every tool_* package.

import (
	"github.com/skald-dev/skald/src/agent"
	"github.com/skald-dev/skald/src/shell"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_copyfile"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_createdir"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_deletefile"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_editfile"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_exit"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_getfileinfo"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_grepfiles"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_listdir"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_movefile"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_patchfile"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_readfile"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_runcommand"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_searchfiles"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_webfetch"
	"github.com/skald-dev/skald/src/skaldagent/tools/tool_writefile"
	"github.com/spf13/afero"
)

// Tool name constants re-exported from the individual packages.
const (
	ReadFileName        = tool_readfile.Name
	WriteFileName       = tool_writefile.Name
	CopyFileName        = tool_copyfile.Name
	MoveFileName        = tool_movefile.Name
	DeleteFileName      = tool_deletefile.Name
	EditFileName        = tool_editfile.Name
	CreateDirectoryName = tool_createdir.Name
	ListDirectoryName   = tool_listdir.Name
	GetFileInfoName     = tool_getfileinfo.Name
	PatchName           = tool_patchfile.Name
	RunCommandName      = tool_runcommand.Name
	SearchFilesName     = tool_searchfiles.Name
	GrepFilesName       = tool_grepfiles.Name
	WebFetchName        = tool_webfetch.Name
	TaskCompleteName    = tool_exit.TaskCompleteName
	AskQuestionName     = tool_exit.AskQuestionName
)

// Filesystem tools.
func ReadFileTool(fs afero.Fs) (agent.Tool, error)        { return tool_readfile.Tool(fs) }
func WriteFileTool(fs afero.Fs) (agent.Tool, error)       { return tool_writefile.Tool(fs) }
func CopyFileTool(fs afero.Fs) (agent.Tool, error)        { return tool_copyfile.Tool(fs) }
func MoveFileTool(fs afero.Fs) (agent.Tool, error)        { return tool_movefile.Tool(fs) }
func DeleteFileTool(fs afero.Fs) (agent.Tool, error)      { return tool_deletefile.Tool(fs) }
func EditFileTool(fs afero.Fs) (agent.Tool, error)        { return tool_editfile.Tool(fs) }
func CreateDirectoryTool(fs afero.Fs) (agent.Tool, error) { return tool_createdir.Tool(fs) }
func ListDirectoryTool(fs afero.Fs) (agent.Tool, error)   { return tool_listdir.Tool(fs) }
func GetFileInfoTool(fs afero.Fs) (agent.Tool, error)     { return tool_getfileinfo.Tool(fs) }
func SearchFilesTool(fs afero.Fs) (agent.Tool, error)     { return tool_searchfiles.Tool(fs) }
func GrepFilesTool(fs afero.Fs) (agent.Tool, error)       { return tool_grepfiles.Tool(fs) }
func PatchTool(fs afero.Fs) (agent.Tool, error)           { return tool_patchfile.ToolWithFs(fs) }

// Network tools.
func WebFetchTool() (agent.Tool, error) { return tool_webfetch.Tool() }

// Shell tools.
func RunCommandTool(shellManager *shell.ShellManager) agent.Tool {
	return tool_runcommand.Tool(shellManager)
}

func RunCommandToolSingle(shellManager *shell.SingleShellManager) agent.Tool {
	return tool_runcommand.ToolWithSingleShell(shellManager)
}

// Control-flow tools the conversation loop intercepts by name.
func TaskCompleteTool() agent.Tool { return tool_exit.TaskCompleteTool() }
func AskQuestionTool() agent.Tool  { return tool_exit.AskQuestionTool() }
