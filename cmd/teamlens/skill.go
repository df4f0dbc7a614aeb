package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/teamlens-dev/teamlens/pkg/presenter"
	"github.com/teamlens-dev/teamlens/pkg/skills"
	"github.com/teamlens-dev/teamlens/pkg/team"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage team skills",
	Long:  `Browse the remote skill catalog and install, list, and remove skills for the team.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed skills",
	Long:  `List all skills installed in the team's skills directory.`,
	Run: func(cmd *cobra.Command, _ []string) {
		discovery := skills.NewDiscovery(teamSkillsDir())
		installed, err := discovery.Installed()
		if err != nil {
			presenter.Error(err, "Failed to read installed skills")
			os.Exit(1)
		}

		if len(installed) == 0 {
			presenter.Info("No skills installed")
			return
		}

		slugs := make([]string, 0, len(installed))
		for slug := range installed {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSLUG\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t----\t-----------")
		for _, slug := range slugs {
			skill := installed[slug]
			description := skill.Description
			if len(description) > 60 {
				description = description[:57] + "..."
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", skill.Name, skill.Slug, description)
		}
		tw.Flush()
	},
}

var skillSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the remote skill catalog",
	Long: `Search the remote skill catalog by name and description. With no query,
the full catalog is listed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		refresh, _ := cmd.Flags().GetBool("refresh")
		catalog := skills.NewCatalog()

		var (
			listing []skills.Skill
			err     error
		)
		if len(args) > 0 {
			listing, err = catalog.Search(ctx, args[0])
		} else {
			listing, err = catalog.List(ctx, refresh)
		}
		if err != nil {
			presenter.Error(err, "Failed to fetch skill catalog")
			os.Exit(1)
		}

		if len(listing) == 0 {
			presenter.Info("No matching skills found")
			return
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SLUG\tNAME\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t----\t-----------")
		for _, skill := range listing {
			description := skill.Description
			if len(description) > 60 {
				description = description[:57] + "..."
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", skill.Slug, skill.Name, description)
		}
		tw.Flush()
	},
}

var skillAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Install a skill from the catalog",
	Long: `Install a skill by its catalog slug into the team's skills directory.

Examples:
  teamlens skill add code-review
  teamlens skill add code-review --force`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		force, _ := cmd.Flags().GetBool("force")
		slug := args[0]

		aggregator := newAggregator()
		dir, err := aggregator.InstallSkillBySlug(ctx, slug, force)
		if err != nil {
			if errors.Is(err, skills.ErrAlreadyInstalled) {
				presenter.Warning(fmt.Sprintf("Skill '%s' is already installed, use --force to overwrite", slug))
				os.Exit(1)
			}
			presenter.Error(err, fmt.Sprintf("Failed to install skill '%s'", slug))
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Installed skill '%s' to %s", slug, dir))
	},
}

var skillRemoveCmd = &cobra.Command{
	Use:   "remove <slug>",
	Short: "Remove an installed skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		slug := args[0]
		installer := skills.NewInstaller(teamSkillsDir())

		if err := installer.Remove(slug); err != nil {
			presenter.Error(err, fmt.Sprintf("Failed to remove skill '%s'", slug))
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Removed skill '%s'", slug))
	},
}

func teamSkillsDir() string {
	return team.DefaultPaths(teamDir()).SkillsDir
}

func init() {
	skillAddCmd.Flags().BoolP("force", "f", false, "Overwrite the skill if it is already installed")
	skillSearchCmd.Flags().Bool("refresh", false, "Bypass the catalog cache")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillSearchCmd)
	skillCmd.AddCommand(skillAddCmd)
	skillCmd.AddCommand(skillRemoveCmd)
}
