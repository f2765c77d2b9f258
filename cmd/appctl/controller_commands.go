package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danmuck/appctl/internal/config"
	"github.com/danmuck/appctl/internal/controller"
	"github.com/danmuck/appctl/internal/stats"
	"github.com/spf13/cobra"
)

func newControllerCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSetParametersCommand(ctx),
		newUploadAppCommand(ctx),
		newPublicIPsCommand(ctx),
		newInitializedCommand(ctx),
		newGetPropertyCommand(ctx),
		newSetPropertyCommand(ctx),
		newSetReadOnlyCommand(ctx),
		newDBStatusCommand(ctx),
		newUploadStatusCommand(ctx),
		newClusterStatsCommand(ctx),
		newNodeStatsCommand(ctx),
		newInstancesCommand(ctx),
		newRequestInfoCommand(ctx),
		newUpdateCronCommand(ctx),
	}
}

// replyCommand builds a command whose result is a single string reply.
func replyCommand(ctx *commandContext, use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, c *controller.Client, args []string) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				reply, err := run(cmd, c, args)
				if err != nil {
					return err
				}
				if mode == outputJSON {
					return writeJSON(cmd, map[string]string{"reply": reply})
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			})
		},
	}
}

func newSetParametersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-parameters <deployment.toml>",
		Short: "Send a deployment layout and options to the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dep, err := config.LoadDeployment(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				if err := c.SetParameters(cmd.Context(), dep.Layout, dep.Options); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Parameters accepted by %s (%d node groups)\n", c.Target(), len(dep.Layout))
				return nil
			})
		},
	}
}

func newUploadAppCommand(ctx *commandContext) *cobra.Command {
	return replyCommand(ctx, "upload-app <archive-path> <suffix>", "Ask the controller to deploy an archive already on the controller host", cobra.ExactArgs(2),
		func(cmd *cobra.Command, c *controller.Client, args []string) (string, error) {
			return c.UploadApp(cmd.Context(), args[0], args[1])
		})
}

func newUploadStatusCommand(ctx *commandContext) *cobra.Command {
	return replyCommand(ctx, "upload-status <reservation-id>", "Show the status of an application upload", cobra.ExactArgs(1),
		func(cmd *cobra.Command, c *controller.Client, args []string) (string, error) {
			return c.GetAppUploadStatus(cmd.Context(), args[0])
		})
}

func newSetPropertyCommand(ctx *commandContext) *cobra.Command {
	return replyCommand(ctx, "set-property <name> <value>", "Set one controller property", cobra.ExactArgs(2),
		func(cmd *cobra.Command, c *controller.Client, args []string) (string, error) {
			return c.SetProperty(cmd.Context(), args[0], args[1])
		})
}

func newSetReadOnlyCommand(ctx *commandContext) *cobra.Command {
	return replyCommand(ctx, "set-read-only <true|false>", "Toggle read-only mode on the controller's node", cobra.ExactArgs(1),
		func(cmd *cobra.Command, c *controller.Client, args []string) (string, error) {
			readOnly, err := strconv.ParseBool(strings.TrimSpace(args[0]))
			if err != nil {
				return "", fmt.Errorf("parse read-only flag: %w", err)
			}
			return c.SetNodeReadOnly(cmd.Context(), readOnly)
		})
}

func newUpdateCronCommand(ctx *commandContext) *cobra.Command {
	return replyCommand(ctx, "update-cron <project-id>", "Reload cron jobs for a project", cobra.ExactArgs(1),
		func(cmd *cobra.Command, c *controller.Client, args []string) (string, error) {
			return c.UpdateCron(cmd.Context(), args[0])
		})
}

func newPublicIPsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "public-ips",
		Short: "List the public IPs of every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				ips, err := c.GetAllPublicIPs(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, mode, ips, []string{"#", "Public IP"}, func() [][]string {
					rows := make([][]string, 0, len(ips))
					for i, ip := range ips {
						rows = append(rows, []string{strconv.Itoa(i + 1), ip})
					}
					return rows
				}, alignRight)
			})
		},
	}
}

func newInitializedCommand(ctx *commandContext) *cobra.Command {
	return boolCommand(ctx, "initialized", "Report whether the controller finished starting up", "initialized",
		func(cmd *cobra.Command, c *controller.Client) (bool, error) {
			return c.IsDoneInitializing(cmd.Context())
		})
}

func newDBStatusCommand(ctx *commandContext) *cobra.Command {
	return boolCommand(ctx, "db-status", "Report whether the primary database is up", "primary_db_is_up",
		func(cmd *cobra.Command, c *controller.Client) (bool, error) {
			return c.PrimaryDBIsUp(cmd.Context())
		})
}

func boolCommand(ctx *commandContext, use, short, key string, run func(cmd *cobra.Command, c *controller.Client) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				v, err := run(cmd, c)
				if err != nil {
					return err
				}
				if mode == outputJSON {
					return writeJSON(cmd, map[string]bool{key: v})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, yesNo(v))
				return nil
			})
		},
	}
}

func newGetPropertyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get-property [regex]",
		Short: "List controller properties whose names match a regex",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			regex := ".*"
			if len(args) == 1 {
				regex = args[0]
			}
			return ctx.withClient(func(c *controller.Client) error {
				props, err := c.GetProperty(cmd.Context(), regex)
				if err != nil {
					return err
				}
				return emit(cmd, mode, props, []string{"Property", "Value"}, func() [][]string {
					names := make([]string, 0, len(props))
					for name := range props {
						names = append(names, name)
					}
					sort.Strings(names)
					rows := make([][]string, 0, len(names))
					for _, name := range names {
						rows = append(rows, []string{name, props[name]})
					}
					return rows
				})
			})
		},
	}
}

func newInstancesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "instances",
		Short: "List running application instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				instances, err := c.GetInstanceInfo(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, mode, instances, []string{"App", "Host", "Port", "Language"}, func() [][]string {
					rows := make([][]string, 0, len(instances))
					for _, inst := range instances {
						rows = append(rows, []string{inst.AppID, inst.Host, strconv.Itoa(inst.Port), inst.Language})
					}
					return rows
				}, alignLeft, alignLeft, alignRight, alignLeft)
			})
		},
	}
}

func newRequestInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "request-info <version-key>",
		Short: "Show request rate statistics for an application version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				info, err := c.GetRequestInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd, mode, info, []string{"Version", "Requests", "Avg rate", "Timestamp"}, func() [][]string {
					return [][]string{{
						args[0],
						strconv.FormatInt(info.NumOfRequests, 10),
						strconv.FormatFloat(info.AvgRequestRate, 'f', 2, 64),
						strconv.FormatFloat(info.Timestamp, 'f', 0, 64),
					}}
				}, alignLeft, alignRight, alignRight, alignRight)
			})
		},
	}
}

func newNodeStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "node-stats",
		Short: "Show statistics for the controller's node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				raw, err := c.GetNodeStatsJSON(cmd.Context())
				if err != nil {
					return err
				}
				node, err := stats.DecodeNode(raw)
				if err != nil {
					return err
				}
				return emit(cmd, mode, node, proxyHeaders, func() [][]string {
					return proxyRows(node.Proxies)
				}, proxyAligns...)
			})
		},
	}
}

func newClusterStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cluster-stats",
		Short: "Show statistics for every node in the deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := ctx.output(cmd)
			if err != nil {
				return err
			}
			return ctx.withClient(func(c *controller.Client) error {
				raw, err := c.GetClusterStatsJSON(cmd.Context())
				if err != nil {
					return err
				}
				nodes, err := stats.DecodeCluster(raw)
				if err != nil {
					return err
				}
				headers := []string{"Public IP", "Roles", "CPU idle %", "Load 1m", "Mem used %", "Proxies"}
				return emit(cmd, mode, nodes, headers, func() [][]string {
					rows := make([][]string, 0, len(nodes))
					for _, n := range nodes {
						rows = append(rows, []string{
							n.PublicIP,
							strings.Join(n.Roles, ","),
							strconv.FormatFloat(n.CPU.Idle, 'f', 1, 64),
							strconv.FormatFloat(n.Loadavg.Last1Min, 'f', 2, 64),
							memoryUsed(n.Memory),
							strconv.Itoa(len(n.Proxies)),
						})
					}
					return rows
				}, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight)
			})
		},
	}
}

var (
	proxyHeaders = []string{"Proxy", "Frontend", "Backend", "Servers up", "Requests", "5xx"}
	proxyAligns  = []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
)

func proxyRows(proxies []stats.ProxyStats) [][]string {
	rows := make([][]string, 0, len(proxies))
	for _, p := range proxies {
		row := []string{p.Name, "-", "-", fmt.Sprintf("%d/%d", p.ServersUp(), len(p.Servers)), "-", "-"}
		if p.Frontend != nil {
			row[1] = p.Frontend.Status
			row[4] = strconv.FormatInt(p.Frontend.ReqTot, 10)
			row[5] = strconv.FormatInt(p.Frontend.Hrsp5xx, 10)
		}
		if p.Backend != nil {
			row[2] = p.Backend.Status
		}
		rows = append(rows, row)
	}
	return rows
}

func memoryUsed(m stats.Memory) string {
	if m.Total == 0 {
		return "-"
	}
	return strconv.FormatFloat(float64(m.Used)*100/float64(m.Total), 'f', 1, 64)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
