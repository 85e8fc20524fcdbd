package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_jarida() {
    local cur prev words cword
    _init_completion || return

    local commands="init new list show edit rm status passwd index compact keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        init)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-home" -- "$cur"))
            else
                _filedir -d
            fi
            ;;
        new)
            COMPREPLY=($(compgen -W "-m" -- "$cur"))
            ;;
        show|edit|rm)
            if [[ "$cur" == -* ]]; then
                case "$cmd" in
                    show) COMPREPLY=($(compgen -W "-toml" -- "$cur")) ;;
                    edit) COMPREPLY=($(compgen -W "-diff" -- "$cur")) ;;
                    rm) COMPREPLY=($(compgen -W "-force" -- "$cur")) ;;
                esac
            else
                # Complete with entry ids
                local ids
                ids=$(jarida list 2>/dev/null | sed -n 's/^\[\([^]]*\)\].*/\1/p')
                COMPREPLY=($(compgen -W "latest $ids" -- "$cur"))
            fi
            ;;
        passwd)
            COMPREPLY=($(compgen -W "-user" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _jarida jarida
`

const zshCompletion = `#compdef jarida

_jarida() {
    local -a commands
    commands=(
        'init:Create a journal'
        'new:Write a new entry'
        'list:List entries'
        'show:Decrypt and print entries'
        'edit:Edit an existing entry'
        'rm:Remove entries'
        'status:Show journal status'
        'passwd:Change password or username'
        'index:Rebuild the entry index'
        'compact:Compact the journal database'
        'keyring:Manage password in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'jarida commands' commands
            ;;
        args)
            case "${words[2]}" in
                init)
                    _arguments \
                        '-home[Create the journal in the home directory]' \
                        '*:directory:_files -/'
                    ;;
                new)
                    _arguments '-m[Entry text]:message:'
                    ;;
                show)
                    _arguments \
                        '-toml[Print entries as TOML]' \
                        '*:entry:_jarida_entries'
                    ;;
                edit)
                    _arguments \
                        '-diff[Print a diff of the changes]' \
                        '*:entry:_jarida_entries'
                    ;;
                rm)
                    _arguments \
                        '-force[Remove without confirmation]' \
                        '*:entry:_jarida_entries'
                    ;;
                passwd)
                    _arguments '-user[New username]:username:'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'jarida commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_jarida_entries() {
    local -a ids
    ids=(latest ${(f)"$(jarida list 2>/dev/null | sed -n 's/^\[\([^]]*\)\].*/\1/p')"})
    _describe -t entries 'journal entries' ids
}

_jarida "$@"
`

const fishCompletion = `# jarida fish completions

set -l commands init new list show edit rm status passwd index compact keyring help completion

function __jarida_entries
    echo latest
    jarida list 2>/dev/null | sed -n 's/^\[\([^]]*\)\].*/\1/p'
end

complete -c jarida -f

# Commands
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a init -d 'Create a journal'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a new -d 'Write a new entry'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a list -d 'List entries'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a show -d 'Print entries'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a edit -d 'Edit an entry'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Remove entries'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show journal status'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a passwd -d 'Change credentials'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a index -d 'Rebuild the index'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact the database'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c jarida -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# init
complete -c jarida -n "__fish_seen_subcommand_from init" -o home -d 'Use the home directory'
complete -c jarida -n "__fish_seen_subcommand_from init" -a "(__fish_complete_directories)"

# new
complete -c jarida -n "__fish_seen_subcommand_from new" -o m -r -d 'Entry text'

# entry arguments
complete -c jarida -n "__fish_seen_subcommand_from show edit rm" -a "(__jarida_entries)"
complete -c jarida -n "__fish_seen_subcommand_from show" -o toml -d 'Print as TOML'
complete -c jarida -n "__fish_seen_subcommand_from edit" -o diff -d 'Print a diff'
complete -c jarida -n "__fish_seen_subcommand_from rm" -o force -d 'Remove without confirmation'

# passwd
complete -c jarida -n "__fish_seen_subcommand_from passwd" -o user -r -d 'New username'

# keyring subcommands
complete -c jarida -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c jarida -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c jarida -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
