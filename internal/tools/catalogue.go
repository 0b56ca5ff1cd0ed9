package tools

// catalogue returns the fixed tool table. Tool names and parameter shapes
// form the agent's public contract; changing them breaks recorded client
// configurations, so additions go at the end of each category block.
func catalogue() []Definition {
	return []Definition{
		// Desktop automation
		{
			Name:        "screenshot",
			Description: "Capture the full screen and return it as base64-encoded PNG data.",
			Params: map[string]Param{
				"quality": {Type: "number", Description: "JPEG quality 1-100 when downscaling (default 80)"},
			},
			Category: CategoryAutomation,
		},
		{
			Name:        "screenshot_app",
			Description: "Focus an application and capture a screenshot of its frontmost window.",
			Params: map[string]Param{
				"identifier": {Type: "string", Description: "Application name or bundle identifier"},
			},
			Required: []string{"identifier"},
			Category: CategoryAutomation,
		},
		{
			Name:        "click",
			Description: "Click the mouse at screen coordinates.",
			Params: map[string]Param{
				"x":      {Type: "number", Description: "X coordinate"},
				"y":      {Type: "number", Description: "Y coordinate"},
				"button": {Type: "string", Description: "Mouse button", Enum: []string{"left", "right", "middle"}},
				"clicks": {Type: "number", Description: "Click count (2 for double-click)"},
			},
			Required: []string{"x", "y"},
			Category: CategoryAutomation,
		},
		{
			Name:        "mouse_move",
			Description: "Move the mouse cursor to screen coordinates without clicking.",
			Params: map[string]Param{
				"x": {Type: "number", Description: "X coordinate"},
				"y": {Type: "number", Description: "Y coordinate"},
			},
			Required: []string{"x", "y"},
			Category: CategoryAutomation,
		},
		{
			Name:        "mouse_scroll",
			Description: "Scroll at the given position by the given wheel deltas.",
			Params: map[string]Param{
				"x":      {Type: "number", Description: "X coordinate to scroll at"},
				"y":      {Type: "number", Description: "Y coordinate to scroll at"},
				"deltaX": {Type: "number", Description: "Horizontal scroll amount"},
				"deltaY": {Type: "number", Description: "Vertical scroll amount"},
			},
			Required: []string{"deltaY"},
			Category: CategoryAutomation,
		},
		{
			Name:        "mouse_drag",
			Description: "Press the left button at the start point, drag to the end point, and release.",
			Params: map[string]Param{
				"startX": {Type: "number", Description: "Drag start X"},
				"startY": {Type: "number", Description: "Drag start Y"},
				"endX":   {Type: "number", Description: "Drag end X"},
				"endY":   {Type: "number", Description: "Drag end Y"},
			},
			Required: []string{"startX", "startY", "endX", "endY"},
			Category: CategoryAutomation,
		},
		{
			Name:        "mouse_position",
			Description: "Return the current mouse cursor position.",
			Params:      map[string]Param{},
			Category:    CategoryAutomation,
		},
		{
			Name:        "keyboard_type",
			Description: "Type a string of text into the focused control.",
			Params: map[string]Param{
				"text": {Type: "string", Description: "Text to type"},
			},
			Required: []string{"text"},
			Category: CategoryAutomation,
		},
		{
			Name:        "keyboard_press",
			Description: "Press a single key, optionally with modifiers (e.g. key=c, modifiers=[cmd]).",
			Params: map[string]Param{
				"key":       {Type: "string", Description: "Key name (enter, escape, tab, a-z, f1-f12, ...)"},
				"modifiers": {Type: "array", Description: "Modifier keys: cmd, ctrl, alt, shift"},
			},
			Required: []string{"key"},
			Category: CategoryAutomation,
		},
		{
			Name:        "ui_elements",
			Description: "Enumerate clickable UI elements of the frontmost application with their bounds.",
			Params:      map[string]Param{},
			Category:    CategoryAutomation,
		},
		{
			Name:        "ui_windows",
			Description: "List open windows with titles, owning applications, and bounds.",
			Params:      map[string]Param{},
			Category:    CategoryAutomation,
		},
		{
			Name:        "ui_focus",
			Description: "Bring a window to the foreground by title or window id.",
			Params: map[string]Param{
				"title":    {Type: "string", Description: "Window title substring"},
				"windowId": {Type: "number", Description: "Window id from ui_windows"},
			},
			Category: CategoryAutomation,
		},
		{
			Name:        "list_applications",
			Description: "List running applications with name, identifier, pid, and bounds.",
			Params:      map[string]Param{},
			Category:    CategoryAutomation,
		},
		{
			Name:        "focus_application",
			Description: "Activate an application by name or bundle identifier.",
			Params: map[string]Param{
				"identifier": {Type: "string", Description: "Application name or bundle identifier"},
			},
			Required: []string{"identifier"},
			Category: CategoryAutomation,
		},
		{
			Name:        "ocr_analyze",
			Description: "Run OCR over the current screen (or a region) and return recognized text with positions.",
			Params: map[string]Param{
				"x":      {Type: "number", Description: "Region origin X"},
				"y":      {Type: "number", Description: "Region origin Y"},
				"width":  {Type: "number", Description: "Region width"},
				"height": {Type: "number", Description: "Region height"},
			},
			Category: CategoryAutomation,
		},
		{
			Name:        "clipboard_read",
			Description: "Read the current text contents of the system clipboard.",
			Params:      map[string]Param{},
			Category:    CategoryAutomation,
		},
		{
			Name:        "clipboard_write",
			Description: "Replace the system clipboard contents with the given text.",
			Params: map[string]Param{
				"text": {Type: "string", Description: "Text to place on the clipboard"},
			},
			Required: []string{"text"},
			Category: CategoryAutomation,
		},
		{
			Name:        "system_info",
			Description: "Return host platform, OS version, screen geometry, and agent version.",
			Params:      map[string]Param{},
			Category:    CategoryAutomation,
		},
		{
			Name:        "wait",
			Description: "Pause for the given number of milliseconds before the next action.",
			Params: map[string]Param{
				"milliseconds": {Type: "number", Description: "Time to wait"},
			},
			Required: []string{"milliseconds"},
			Category: CategoryAutomation,
		},

		// Filesystem
		{
			Name:        "fs_list",
			Description: "List files and directories at a path, optionally recursive up to maxDepth.",
			Params: map[string]Param{
				"path":      {Type: "string", Description: "Directory to list"},
				"recursive": {Type: "boolean", Description: "Recurse into subdirectories"},
				"maxDepth":  {Type: "number", Description: "Maximum recursion depth (default 3)"},
			},
			Required: []string{"path"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_read",
			Description: "Read a file's contents, truncated at maxBytes (default 128 KiB).",
			Params: map[string]Param{
				"path":     {Type: "string", Description: "File to read"},
				"maxBytes": {Type: "number", Description: "Byte cap on returned content"},
			},
			Required: []string{"path"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_read_range",
			Description: "Read a file segment by 1-based inclusive line range.",
			Params: map[string]Param{
				"path":      {Type: "string", Description: "File to read"},
				"startLine": {Type: "number", Description: "First line (1-based)"},
				"endLine":   {Type: "number", Description: "Last line, inclusive (-1 for end of file)"},
			},
			Required: []string{"path", "startLine"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_write",
			Description: "Create or overwrite a file with the given content.",
			Params: map[string]Param{
				"path":       {Type: "string", Description: "File to write"},
				"content":    {Type: "string", Description: "Content to write"},
				"mode":       {Type: "string", Description: "Write mode", Enum: []string{"overwrite", "append", "create_if_missing"}},
				"createDirs": {Type: "boolean", Description: "Create parent directories"},
			},
			Required: []string{"path", "content"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_delete",
			Description: "Delete a file, or a directory when recursive is set.",
			Params: map[string]Param{
				"path":      {Type: "string", Description: "Path to delete"},
				"recursive": {Type: "boolean", Description: "Delete directories recursively"},
			},
			Required: []string{"path"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_move",
			Description: "Move or rename a file or directory.",
			Params: map[string]Param{
				"source":      {Type: "string", Description: "Source path"},
				"destination": {Type: "string", Description: "Destination path"},
			},
			Required: []string{"source", "destination"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_search",
			Description: "Find files under a base path matching a glob pattern (supports **).",
			Params: map[string]Param{
				"path":       {Type: "string", Description: "Base directory"},
				"glob":       {Type: "string", Description: "Glob pattern, e.g. **/*.go"},
				"maxResults": {Type: "number", Description: "Result cap (default 200)"},
			},
			Required: []string{"path", "glob"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_grep",
			Description: "Search file contents under a base path with a regular expression.",
			Params: map[string]Param{
				"path":       {Type: "string", Description: "Base directory"},
				"pattern":    {Type: "string", Description: "Regular expression"},
				"glob":       {Type: "string", Description: "Optional glob filter for files"},
				"maxMatches": {Type: "number", Description: "Match cap (default 200)"},
			},
			Required: []string{"path", "pattern"},
			Category: CategoryFilesystem,
		},
		{
			Name:        "fs_patch",
			Description: "Apply replace/insert operations to a file, optionally as a dry-run preview.",
			Params: map[string]Param{
				"path":       {Type: "string", Description: "File to patch"},
				"operations": {Type: "array", Description: "Operations: {type: replace, find, replace, all?} or {type: insert, line, text}"},
				"dryRun":     {Type: "boolean", Description: "Preview without writing"},
			},
			Required: []string{"path", "operations"},
			Category: CategoryFilesystem,
		},

		// Shell
		{
			Name:        "shell_exec",
			Description: "Run a command and return stdout, stderr, and exit code when it finishes.",
			Params: map[string]Param{
				"command":       {Type: "string", Description: "Shell command to execute"},
				"cwd":           {Type: "string", Description: "Working directory"},
				"timeout":       {Type: "number", Description: "Seconds before the command is killed (default 600)"},
				"captureStderr": {Type: "boolean", Description: "Capture stderr separately (default true)"},
			},
			Required: []string{"command"},
			Category: CategoryShell,
		},
		{
			Name:        "shell_start_session",
			Description: "Start an interactive or long-running command session and return its id.",
			Params: map[string]Param{
				"command":       {Type: "string", Description: "Shell command to execute"},
				"cwd":           {Type: "string", Description: "Working directory"},
				"env":           {Type: "object", Description: "Extra environment variables"},
				"captureStderr": {Type: "boolean", Description: "Capture stderr separately (default true)"},
			},
			Required: []string{"command"},
			Category: CategoryShell,
		},
		{
			Name:        "shell_send_input",
			Description: "Write text to a running session's standard input.",
			Params: map[string]Param{
				"sessionId": {Type: "string", Description: "Session id from shell_start_session"},
				"input":     {Type: "string", Description: "Text to write (include trailing newline to submit)"},
			},
			Required: []string{"sessionId", "input"},
			Category: CategoryShell,
		},
		{
			Name:        "shell_stop_session",
			Description: "Signal a session's process and remove the session once it exits.",
			Params: map[string]Param{
				"sessionId": {Type: "string", Description: "Session id"},
				"signal":    {Type: "string", Description: "Signal to send", Enum: []string{"TERM", "KILL", "INT", "HUP"}},
			},
			Required: []string{"sessionId"},
			Category: CategoryShell,
		},
		{
			Name:        "shell_read_output",
			Description: "Drain and return the output buffered since the last read for a session.",
			Params: map[string]Param{
				"sessionId": {Type: "string", Description: "Session id"},
			},
			Required: []string{"sessionId"},
			Category: CategoryShell,
		},
		{
			Name:        "shell_list_sessions",
			Description: "List active shell sessions with state, pid, and elapsed time.",
			Params:      map[string]Param{},
			Category:    CategoryShell,
		},

		// Browser (advertised only while an extension is connected)
		{
			Name:        "browser_navigate",
			Description: "Navigate the active browser tab to a URL.",
			Params: map[string]Param{
				"url":     {Type: "string", Description: "Destination URL"},
				"browser": {Type: "string", Description: "Target browser when several are connected"},
			},
			Required: []string{"url"},
			Category: CategoryBrowser,
		},
		{
			Name:        "browser_screenshot",
			Description: "Capture a screenshot of the active browser tab.",
			Params: map[string]Param{
				"browser": {Type: "string", Description: "Target browser when several are connected"},
			},
			Category: CategoryBrowser,
		},
		{
			Name:        "browser_get_content",
			Description: "Return the active tab's page text or HTML.",
			Params: map[string]Param{
				"format":  {Type: "string", Description: "Content format", Enum: []string{"text", "html"}},
				"browser": {Type: "string", Description: "Target browser when several are connected"},
			},
			Category: CategoryBrowser,
		},
		{
			Name:        "browser_execute",
			Description: "Execute JavaScript in the active tab and return the serialized result.",
			Params: map[string]Param{
				"script":  {Type: "string", Description: "JavaScript source"},
				"browser": {Type: "string", Description: "Target browser when several are connected"},
			},
			Required: []string{"script"},
			Category: CategoryBrowser,
		},
		{
			Name:        "browser_tabs",
			Description: "List open browser tabs with titles and URLs.",
			Params: map[string]Param{
				"browser": {Type: "string", Description: "Target browser when several are connected"},
			},
			Category: CategoryBrowser,
		},
	}
}
