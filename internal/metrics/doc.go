/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖消息总线、
辩论引擎与任务委派三大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
支持多维度 label 分组。

# 主要能力

  - 总线指标：发布/投递/失败计数（按消息 kind 分组）、队列深度、
    单次 drain 耗时。
  - 辩论指标：辩论创建与结束计数、轮次分布、投票方式分组。
  - 委派指标：项目状态转换计数、子任务完成计数。
*/
package metrics
